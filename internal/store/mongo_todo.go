package store

import (
	"context"
	"errors"
	"time"

	"github.com/jjudge-oj/todolist/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const todosCollection = "todos"

type todoDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TodoName  string             `bson:"todoName"`
	Desc      string             `bson:"desc"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d todoDocument) toTodo() types.Todo {
	return types.Todo{
		ID:        d.ID.Hex(),
		TodoName:  d.TodoName,
		Desc:      d.Desc,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoTodoRepository stores todos in a MongoDB collection.
// ObjectIDs grow monotonically, so sorting by _id yields creation order.
type MongoTodoRepository struct {
	coll *mongo.Collection
}

func NewMongoTodoRepository(db *mongo.Database) *MongoTodoRepository {
	return &MongoTodoRepository{coll: db.Collection(todosCollection)}
}

func (r *MongoTodoRepository) List(ctx context.Context) ([]types.Todo, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	todos := make([]types.Todo, 0)
	for cursor.Next(ctx) {
		var doc todoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		todos = append(todos, doc.toTodo())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *MongoTodoRepository) Get(ctx context.Context, id string) (types.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Todo{}, ErrNotFound
	}

	var doc todoDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return doc.toTodo(), nil
}

func (r *MongoTodoRepository) Create(ctx context.Context, todo types.Todo) (types.Todo, error) {
	now := time.Now().UTC()
	doc := todoDocument{
		ID:        primitive.NewObjectID(),
		TodoName:  todo.TodoName,
		Desc:      todo.Desc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return types.Todo{}, err
	}
	return doc.toTodo(), nil
}

func (r *MongoTodoRepository) Update(ctx context.Context, todo types.Todo) (types.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(todo.ID)
	if err != nil {
		return types.Todo{}, ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"todoName":  todo.TodoName,
		"desc":      todo.Desc,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc todoDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return doc.toTodo(), nil
}

func (r *MongoTodoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
