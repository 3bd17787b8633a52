package mongodb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type tagDocument struct {
	TagName   string    `bson:"tagName"`
	CreatedAt time.Time `bson:"createdAt"`
}

var tagSortFields = map[string]string{
	model.SortTagName:   "tagName",
	model.SortCreatedAt: "createdAt",
}

type tagRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewTagRepository 创建基于MongoDB的标签仓库
func NewTagRepository(db *mongo.Database) repository.TagRepository {
	return &tagRepository{coll: db.Collection(tagsCollection), now: time.Now}
}

// Upsert sends one unordered bulk write. $setOnInsert leaves existing tags
// untouched; a concurrent insert of the same name surfaces as a duplicate key
// error and is not a failure.
func (r *tagRepository) Upsert(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	now := r.now().UTC()

	models := make([]mongo.WriteModel, 0, len(names))
	for _, name := range names {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"tagName": name}).
			SetUpdate(bson.M{"$setOnInsert": tagDocument{TagName: name, CreatedAt: now}}).
			SetUpsert(true))
	}

	_, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil && onlyDuplicateKeys(err) {
		logger.WithField("tags", names).Debug("tag registered concurrently")
		return nil
	}
	return err
}

// onlyDuplicateKeys reports whether every failure in a bulk write is a
// duplicate key. Any other write or write concern error makes it false.
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if !isDuplicateKeyCode(we.Code) {
			return false
		}
	}
	return true
}

func isDuplicateKeyCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

func (r *tagRepository) Search(ctx context.Context, query string, page model.PageRequest) (*model.Page[string], error) {
	filter := bson.M{}
	if query != "" {
		filter["tagName"] = bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	var sorts []sortSpec
	for _, s := range page.Sort {
		if field, ok := tagSortFields[s.Field]; ok {
			sorts = append(sorts, sortSpec{field: field, desc: s.Desc})
		}
	}
	opts := options.Find().
		SetSort(sortDocument(sorts)).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size)).
		SetProjection(bson.M{"tagName": 1})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []tagDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.TagName)
	}
	return model.NewPage(names, page, total), nil
}
