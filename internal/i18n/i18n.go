// Package i18n 提供国际化支持
// 负责把请求校验错误翻译成调用方语言
package i18n

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/weiwangfds/filevault/internal/logger"
)

// 支持的语言
const (
	LangEn = "en"
	LangZh = "zh"
)

var (
	instance *I18n
	once     sync.Once
)

// I18n 国际化管理器
type I18n struct {
	uni         *ut.UniversalTranslator
	defaultLang string
}

// GetInstance 获取绑定到gin校验器的I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
		}
		var err error
		if instance, err = New(v); err != nil {
			logger.Errorf("初始化校验翻译失败: %v", err)
		}
	})
	return instance
}

// New 为校验器注册英文和中文翻译，默认语言为英文
// 字段名取自 json/form 标签，与请求中的名称一致
func New(v *validator.Validate) (*I18n, error) {
	enLocale := en.New()
	i := &I18n{
		uni:         ut.New(enLocale, enLocale, zh.New()),
		defaultLang: LangEn,
	}

	v.RegisterTagNameFunc(fieldName)

	enTrans, _ := i.uni.GetTranslator(LangEn)
	if err := en_translations.RegisterDefaultTranslations(v, enTrans); err != nil {
		return i, err
	}
	zhTrans, _ := i.uni.GetTranslator(LangZh)
	if err := zh_translations.RegisterDefaultTranslations(v, zhTrans); err != nil {
		return i, err
	}
	return i, nil
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Translator 根据 Accept-Language 选择翻译器，无匹配时回退到默认语言
func (i *I18n) Translator(acceptLanguage string) ut.Translator {
	var candidates []string
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		tag = strings.ToLower(strings.ReplaceAll(tag, "-", "_"))
		candidates = append(candidates, tag)
		if base, _, found := strings.Cut(tag, "_"); found {
			candidates = append(candidates, base)
		}
	}

	if trans, found := i.uni.FindTranslator(candidates...); found {
		return trans
	}
	trans, _ := i.uni.GetTranslator(i.defaultLang)
	return trans
}

// TranslateValidation 将校验错误转换为 {字段: 消息}
func (i *I18n) TranslateValidation(errs validator.ValidationErrors, acceptLanguage string) map[string]string {
	trans := i.Translator(acceptLanguage)
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Translate(trans)
	}
	return out
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}
