package i18n

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renameRequest struct {
	NewFilename string `json:"newFilename" validate:"required,max=50"`
	UserID      string `json:"userId" validate:"required,uuid"`
}

func setup(t *testing.T) (*I18n, validator.ValidationErrors) {
	t.Helper()
	v := validator.New()
	i, err := New(v)
	require.NoError(t, err)

	err = v.Struct(renameRequest{UserID: "nope"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	return i, verrs
}

func TestTranslateValidation(t *testing.T) {
	i, verrs := setup(t)

	msgs := i.TranslateValidation(verrs, "")
	require.Len(t, msgs, 2)
	assert.Equal(t, "newFilename is a required field", msgs["newFilename"])
	assert.Equal(t, "userId must be a valid UUID", msgs["userId"])

	zhMsgs := i.TranslateValidation(verrs, "zh-CN,zh;q=0.9,en;q=0.8")
	assert.Equal(t, "newFilename为必填字段", zhMsgs["newFilename"])
}

func TestTranslator(t *testing.T) {
	i, _ := setup(t)
	assert.Equal(t, LangEn, i.GetDefaultLanguage())

	assert.Equal(t, "en", i.Translator("").Locale())
	assert.Equal(t, "en", i.Translator("fr-FR, *").Locale())
	assert.Equal(t, "zh", i.Translator("zh-TW").Locale())
	assert.Equal(t, "zh", i.Translator("de;q=0.9, zh;q=0.8").Locale())
}

func TestGetInstanceBindsGinValidator(t *testing.T) {
	require.NotNil(t, GetInstance())
	assert.Same(t, GetInstance(), GetInstance())
}
