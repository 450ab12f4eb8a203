package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
)

func TestCommentLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	post := createTestPost(t, db, owner.ID, "p", 1)

	first := &model.Comment{User: owner.ID, PostID: post.ID, Comment: "first", CreatedAt: 1}
	second := &model.Comment{User: owner.ID, PostID: post.ID, Comment: "second", CreatedAt: 2}
	for _, c := range []*model.Comment{second, first} {
		if err := db.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment() error = %v", err)
		}
	}

	list, err := db.ListCommentsByPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("ListCommentsByPost() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("ListCommentsByPost() = %+v, want oldest first", list)
	}

	liked, err := db.AddCommentLikes(ctx, first.ID, []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("AddCommentLikes() error = %v", err)
	}
	liked, err = db.AddCommentLikes(ctx, first.ID, []string{"u2", "u3"})
	if err != nil {
		t.Fatalf("AddCommentLikes() error = %v", err)
	}
	if len(liked.Likes) != 3 {
		t.Errorf("Likes = %v, want union of 3", liked.Likes)
	}

	if err := db.DeleteComment(ctx, first.ID); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	if _, err := db.GetCommentByID(ctx, first.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetCommentByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestAddCommentLikes_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.AddCommentLikes(context.Background(), "missing", []string{"u1"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddCommentLikes() error = %v, want ErrNotFound", err)
	}
}

func TestSavedLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	post := createTestPost(t, db, owner.ID, "p", 1)

	s := &model.Saved{User: owner.ID, PostID: post.ID, CreatedAt: 5}
	if err := db.CreateSaved(ctx, s); err != nil {
		t.Fatalf("CreateSaved() error = %v", err)
	}

	saves, err := db.ListSavedByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListSavedByUser() error = %v", err)
	}
	if len(saves) != 1 || saves[0].PostID != post.ID {
		t.Errorf("ListSavedByUser() = %+v", saves)
	}

	if err := db.DeleteSaved(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSaved() error = %v", err)
	}
	if err := db.DeleteSaved(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteSaved() error = %v, want ErrNotFound", err)
	}
}
