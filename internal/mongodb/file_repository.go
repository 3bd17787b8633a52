package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fileDocument is the stored shape of a FileRecord.
type fileDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FileID      string             `bson:"fileId"`
	OwnerID     string             `bson:"ownerId"`
	Filename    string             `bson:"filename"`
	Checksum    string             `bson:"checksum"`
	StorageKey  string             `bson:"storageKey"`
	Tags        []string           `bson:"tags"`
	Size        int64              `bson:"size"`
	Visibility  string             `bson:"visibility"`
	ContentType string             `bson:"contentType"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

var fileSortFields = map[string]string{
	model.SortFilename:    "filename",
	model.SortSize:        "size",
	model.SortCreatedAt:   "createdAt",
	model.SortUpdatedAt:   "updatedAt",
	model.SortContentType: "contentType",
	model.SortVisibility:  "visibility",
}

func toDocument(rec *model.FileRecord) *fileDocument {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return &fileDocument{
		FileID:      rec.FileID.String(),
		OwnerID:     rec.OwnerID.String(),
		Filename:    rec.Filename,
		Checksum:    rec.Checksum,
		StorageKey:  rec.StorageKey,
		Tags:        tags,
		Size:        rec.Size,
		Visibility:  string(rec.Visibility),
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (d *fileDocument) toModel() model.FileRecord {
	fileID, _ := uuid.Parse(d.FileID)
	ownerID, _ := uuid.Parse(d.OwnerID)
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.FileRecord{
		FileID:      fileID,
		OwnerID:     ownerID,
		Filename:    d.Filename,
		Checksum:    d.Checksum,
		StorageKey:  d.StorageKey,
		Tags:        tags,
		Size:        d.Size,
		Visibility:  model.Visibility(d.Visibility),
		ContentType: d.ContentType,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type fileRepository struct {
	coll *mongo.Collection
}

// NewFileRepository 创建基于MongoDB的文件元数据仓库
func NewFileRepository(db *mongo.Database) repository.FileRepository {
	return &fileRepository{coll: db.Collection(filesCollection)}
}

func (r *fileRepository) Create(ctx context.Context, rec *model.FileRecord) error {
	if _, err := r.coll.InsertOne(ctx, toDocument(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *fileRepository) Update(ctx context.Context, rec *model.FileRecord) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"fileId": rec.FileID.String()},
		bson.M{"$set": bson.M{"filename": rec.Filename, "updatedAt": rec.UpdatedAt}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, fileID uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"fileId": fileID.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fileRepository) FindByFileIDAndOwner(ctx context.Context, fileID, ownerID uuid.UUID) (*model.FileRecord, error) {
	rec, err := r.findOne(ctx, bson.M{"fileId": fileID.String(), "ownerId": ownerID.String()})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *fileRepository) FindByFilenameAndOwner(ctx context.Context, filename string, ownerID uuid.UUID) (*model.FileRecord, error) {
	return r.findOne(ctx, bson.M{"filename": filename, "ownerId": ownerID.String()})
}

func (r *fileRepository) findOne(ctx context.Context, filter bson.M) (*model.FileRecord, error) {
	var doc fileDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	rec := doc.toModel()
	return &rec, nil
}

func (r *fileRepository) List(ctx context.Context, filter model.FileFilter, page model.PageRequest) (*model.Page[model.FileRecord], error) {
	query := bson.M{}
	if filter.OwnerID != nil {
		query["ownerId"] = filter.OwnerID.String()
	}
	if filter.Visibility != nil {
		query["visibility"] = string(*filter.Visibility)
	}
	if len(filter.AnyTags) > 0 {
		query["tags"] = bson.M{"$in": filter.AnyTags}
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	var sorts []sortSpec
	for _, s := range page.Sort {
		if field, ok := fileSortFields[s.Field]; ok {
			sorts = append(sorts, sortSpec{field: field, desc: s.Desc})
		}
	}
	opts := options.Find().
		SetSort(sortDocument(sorts)).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []fileDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	content := make([]model.FileRecord, 0, len(docs))
	for i := range docs {
		content = append(content, docs[i].toModel())
	}
	return model.NewPage(content, page, total), nil
}
