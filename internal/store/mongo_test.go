package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/jjudge-oj/todolist/types"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func duplicateKey(index string) bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: test.users index: " + index + " dup key: { x: \"dup\" }",
	})
}

func TestMongoUserRepository_EnsureIndexes(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("creates unique username and email indexes", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, r.EnsureIndexes(context.Background()))

		started := mt.GetStartedEvent()
		require.Equal(mt, "createIndexes", started.CommandName)
		indexes := started.Command.Lookup("indexes").Array()
		values, err := indexes.Values()
		require.NoError(mt, err)
		require.Len(mt, values, 2)

		names := make([]string, 0, len(values))
		for _, v := range values {
			doc := v.Document()
			require.True(mt, doc.Lookup("unique").Boolean())
			names = append(names, doc.Lookup("name").StringValue())
		}
		require.ElementsMatch(mt, []string{"users_username_key", "users_email_key"}, names)
	})
}

func TestMongoUserRepository_Create(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("defaults image path", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user, err := r.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io", PasswordHash: "h"})
		require.NoError(mt, err)
		require.True(mt, primitive.IsValidObjectID(user.ID))
		require.Equal(mt, types.DefaultImagePath, user.ImagePath)

		doc := mt.GetStartedEvent().Command.Lookup("documents").Array().Index(0).Value().Document()
		require.Equal(mt, "alice", doc.Lookup("username").StringValue())
		require.Equal(mt, "h", doc.Lookup("password").StringValue())
		require.Equal(mt, types.DefaultImagePath, doc.Lookup("imagePath").StringValue())
	})

	conflicts := []struct {
		index string
		field string
	}{
		{index: "users_email_key", field: "email"},
		{index: "users_username_key", field: "username"},
		{index: "_id_", field: "id"},
	}
	for _, tc := range conflicts {
		mt.Run("duplicate "+tc.field, func(mt *mtest.T) {
			r := store.NewMongoUserRepository(mt.DB)
			mt.AddMockResponses(duplicateKey(tc.index))

			_, err := r.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io"})
			require.ErrorIs(mt, err, store.ErrConflict)

			var conflict *store.ConflictError
			require.True(mt, errors.As(err, &conflict))
			require.Equal(mt, tc.field, conflict.Field)
		})
	}

	mt.Run("other write errors pass through", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 121, Message: "validation failed"}))

		_, err := r.Create(context.Background(), types.User{Username: "alice", Email: "a@x.io"})
		require.Error(mt, err)
		require.NotErrorIs(mt, err, store.ErrConflict)
	})
}

func TestMongoUserRepository_Get(t *testing.T) {
	mt := newMockMongo(t)
	ns := "test.users"

	mt.Run("by username", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "a@x.io"},
			{Key: "password", Value: "hash"},
			{Key: "imagePath", Value: "/uploads/a.png"},
		}))

		user, err := r.GetByUsername(context.Background(), "alice")
		require.NoError(mt, err)
		require.Equal(mt, oid.Hex(), user.ID)
		require.Equal(mt, "hash", user.PasswordHash)
		require.Equal(mt, "/uploads/a.png", user.ImagePath)
	})

	mt.Run("missing email", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := r.GetByEmail(context.Background(), "nobody@x.io")
		require.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)

		_, err := r.GetByID(context.Background(), "not-an-object-id")
		require.ErrorIs(mt, err, store.ErrNotFound)
		require.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestMongoUserRepository_UpdateImagePath(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("returns updated user", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "alice"},
			{Key: "imagePath", Value: "/uploads/new.png"},
		}}))

		user, err := r.UpdateImagePath(context.Background(), oid.Hex(), "/uploads/new.png")
		require.NoError(mt, err)
		require.Equal(mt, "/uploads/new.png", user.ImagePath)
		require.Equal(mt, "findAndModify", mt.GetStartedEvent().CommandName)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		r := store.NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := r.UpdateImagePath(context.Background(), primitive.NewObjectID().Hex(), "/uploads/new.png")
		require.ErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestMongoTodoRepository_List(t *testing.T) {
	mt := newMockMongo(t)
	ns := "test.todos"

	mt.Run("sorted by id", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "todoName", Value: "buy milk"}, {Key: "desc", Value: "2 litres"}, {Key: "createdAt", Value: now}},
			bson.D{{Key: "_id", Value: second}, {Key: "todoName", Value: "walk dog"}, {Key: "desc", Value: "park"}, {Key: "createdAt", Value: now}},
		))

		todos, err := r.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, todos, 2)
		require.Equal(mt, first.Hex(), todos[0].ID)
		require.Equal(mt, "walk dog", todos[1].TodoName)
		require.True(mt, now.Equal(todos[0].CreatedAt))

		sort := mt.GetStartedEvent().Command.Lookup("sort").Document()
		require.EqualValues(mt, 1, sort.Lookup("_id").AsInt64())
	})

	mt.Run("empty", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		todos, err := r.List(context.Background())
		require.NoError(mt, err)
		require.NotNil(mt, todos)
		require.Empty(mt, todos)
	})
}

func TestMongoTodoRepository_MissingTodo(t *testing.T) {
	mt := newMockMongo(t)
	ns := "test.todos"

	mt.Run("get", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := r.Get(context.Background(), primitive.NewObjectID().Hex())
		require.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("update", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := r.Update(context.Background(), types.Todo{ID: primitive.NewObjectID().Hex(), TodoName: "x", Desc: "y"})
		require.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := r.Delete(context.Background(), primitive.NewObjectID().Hex())
		require.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)

		_, err := r.Get(context.Background(), "42")
		require.ErrorIs(mt, err, store.ErrNotFound)
		_, err = r.Update(context.Background(), types.Todo{ID: "42"})
		require.ErrorIs(mt, err, store.ErrNotFound)
		require.ErrorIs(mt, r.Delete(context.Background(), "42"), store.ErrNotFound)
		require.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestMongoTodoRepository_CreateAndDelete(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("create then delete", func(mt *mtest.T) {
		r := store.NewMongoTodoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		todo, err := r.Create(context.Background(), types.Todo{TodoName: "buy milk", Desc: "2 litres"})
		require.NoError(mt, err)
		require.True(mt, primitive.IsValidObjectID(todo.ID))
		require.Equal(mt, todo.CreatedAt, todo.UpdatedAt)

		require.NoError(mt, r.Delete(context.Background(), todo.ID))
	})
}
