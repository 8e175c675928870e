package metastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/digiscribe/backend/internal/models"
)

const (
	foldersCollection = "folders"
	filesCollection   = "files"
)

// MongoStore implements Store over a MongoDB database. Record ids are
// uuid strings assigned on insert, stored as _id.
type MongoStore struct {
	folders *mongo.Collection
	files   *mongo.Collection
}

// NewMongoStore connects to uri and returns a store bound to the named
// database. The caller owns the client lifecycle via Close.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		folders: db.Collection(foldersCollection),
		files:   db.Collection(filesCollection),
	}, nil
}

var _ Store = (*MongoStore)(nil)

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.folders.Database().Client().Disconnect(ctx)
}

func (s *MongoStore) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	var f models.Folder
	err := s.folders.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching folder %s: %w", id, err)
	}
	return &f, nil
}

func (s *MongoStore) AddFolder(ctx context.Context, f *models.Folder) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if _, err := s.folders.InsertOne(ctx, f); err != nil {
		return "", fmt.Errorf("inserting folder: %w", err)
	}
	return f.ID, nil
}

func (s *MongoStore) UpdateFolder(ctx context.Context, id string, fields map[string]any) error {
	res, err := s.folders.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("updating folder %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteFolder(ctx context.Context, id string) error {
	res, err := s.folders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting folder %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListFolders(ctx context.Context, ownerUID string) ([]*models.Folder, error) {
	filter := bson.M{}
	if ownerUID != "" {
		filter["createdBy"] = ownerUID
	}
	return decodeAll[models.Folder](ctx, s.folders, filter, nil)
}

func (s *MongoStore) ChildFolders(ctx context.Context, parentID string) ([]*models.Folder, error) {
	filter := bson.M{"parentId": parentID}
	if parentID == "" {
		// Root folders may have the field unset or empty.
		filter = bson.M{"$or": bson.A{
			bson.M{"parentId": ""},
			bson.M{"parentId": bson.M{"$exists": false}},
		}}
	}
	return decodeAll[models.Folder](ctx, s.folders, filter, nil)
}

func (s *MongoStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	var f models.File
	err := s.files.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching file %s: %w", id, err)
	}
	return &f, nil
}

func (s *MongoStore) AddFile(ctx context.Context, f *models.File) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if _, err := s.files.InsertOne(ctx, f); err != nil {
		return "", fmt.Errorf("inserting file: %w", err)
	}
	return f.ID, nil
}

func (s *MongoStore) UpdateFile(ctx context.Context, id string, fields map[string]any) error {
	res, err := s.files.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("updating file %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListFiles(ctx context.Context, ownerUID string) ([]*models.File, error) {
	filter := bson.M{}
	if ownerUID != "" {
		filter["uploadedBy"] = ownerUID
	}
	return decodeAll[models.File](ctx, s.files, filter, nil)
}

func (s *MongoStore) FilesInFolder(ctx context.Context, folderID string) ([]*models.File, error) {
	filter := bson.M{"folderId": folderID}
	if folderID == "" {
		filter = bson.M{"$or": bson.A{
			bson.M{"folderId": ""},
			bson.M{"folderId": bson.M{"$exists": false}},
		}}
	}
	return decodeAll[models.File](ctx, s.files, filter, nil)
}

func (s *MongoStore) FileBatch(ctx context.Context, afterID string, limit int) ([]*models.File, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return decodeAll[models.File](ctx, s.files, bson.M{"_id": bson.M{"$gt": afterID}}, opts)
}

func decodeAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = coll.Find(ctx, filter, opts)
	} else {
		cur, err = coll.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	var out []*T
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", coll.Name(), err)
		}
		out = append(out, &doc)
	}
	return out, cur.Err()
}
