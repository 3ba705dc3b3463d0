//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
)

func seedContent(t *testing.T, c *model.Content) {
	t.Helper()
	repo := NewContentRepo(testPool)
	if _, err := repo.CreateChild(context.Background(), nil, c); err != nil {
		t.Fatalf("seed content %s: %v", c.ID, err)
	}
}

func TestContentRepoFindByID(t *testing.T) {
	defer cleanup(t)
	ctx := context.Background()
	repo := NewContentRepo(testPool)

	seedContent(t, &model.Content{ID: "c1", Type: "text", Data: "hello", UserID: "u1", GroupID: "g1"})

	got, err := repo.FindByID(ctx, nil, "c1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Data != "hello" || got.UserID != "u1" || got.GroupID != "g1" {
		t.Fatalf("got %+v", got)
	}
	if got.Metadata == nil {
		t.Fatal("metadata should decode to an empty map, not nil")
	}

	if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestContentRepoCreateChildGeneratesID(t *testing.T) {
	defer cleanup(t)
	ctx := context.Background()
	repo := NewContentRepo(testPool)

	seedContent(t, &model.Content{ID: "parent", Type: "conversation"})

	parentID := "parent"
	id, err := repo.CreateChild(ctx, nil, &model.Content{
		Type: "text", Data: "> q\n\na", ParentContentID: &parentID,
	})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if id == "" {
		t.Fatal("no id generated")
	}

	children, err := repo.ListChildren(ctx, nil, "parent")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 1 || children[0].ID != id {
		t.Fatalf("children = %+v", children)
	}
}

func TestContentRepoMergeMetadataKeepsSiblingKeys(t *testing.T) {
	defer cleanup(t)
	ctx := context.Background()
	repo := NewContentRepo(testPool)

	seedContent(t, &model.Content{ID: "c1", Metadata: map[string]json.RawMessage{
		"seo": json.RawMessage(`{"title":"old"}`),
	}})

	err := repo.MergeMetadata(ctx, nil, "c1", map[string]json.RawMessage{
		model.MetadataKeySession: json.RawMessage(`{"session_id":"s1","s3_url":"s3://x"}`),
	})
	if err != nil {
		t.Fatalf("MergeMetadata: %v", err)
	}

	got, err := repo.FindByID(ctx, nil, "c1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if _, ok := got.Metadata["seo"]; !ok {
		t.Fatal("sibling key dropped by merge")
	}
	meta := got.SessionMetadata()
	if meta == nil || meta.SessionID != "s1" {
		t.Fatalf("session metadata = %+v", meta)
	}

	// Second merge replaces only the session key.
	err = repo.MergeMetadata(ctx, nil, "c1", map[string]json.RawMessage{
		model.MetadataKeySession: json.RawMessage(`{"session_id":"s2","s3_url":"s3://y"}`),
	})
	if err != nil {
		t.Fatalf("MergeMetadata: %v", err)
	}
	got, _ = repo.FindByID(ctx, nil, "c1")
	if got.SessionMetadata().SessionID != "s2" {
		t.Fatalf("session metadata = %+v", got.SessionMetadata())
	}
	if _, ok := got.Metadata["seo"]; !ok {
		t.Fatal("sibling key dropped by second merge")
	}
}

func TestContentRepoMergeMetadataMissingRow(t *testing.T) {
	defer cleanup(t)
	repo := NewContentRepo(testPool)
	err := repo.MergeMetadata(context.Background(), nil, "missing", map[string]json.RawMessage{
		"k": json.RawMessage(`1`),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGroupRepoMemberships(t *testing.T) {
	defer cleanup(t)
	ctx := context.Background()
	repo := NewGroupRepo(testPool)

	if _, err := testPool.Exec(ctx, `INSERT INTO groups (id, name) VALUES ('g1', 'home')`); err != nil {
		t.Fatal(err)
	}
	if _, err := testPool.Exec(ctx, `INSERT INTO group_memberships (group_id, user_id) VALUES ('g1', 'u1')`); err != nil {
		t.Fatal(err)
	}

	g, err := repo.FindGroup(ctx, nil, "g1")
	if err != nil || g.Name != "home" {
		t.Fatalf("FindGroup = %+v, %v", g, err)
	}

	members, err := repo.Memberships(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("Memberships: %v", err)
	}
	if len(members) != 1 || members[0].GroupID != "g1" {
		t.Fatalf("members = %+v", members)
	}

	none, err := repo.Memberships(ctx, nil, "stranger")
	if err != nil || len(none) != 0 {
		t.Fatalf("stranger members = %+v, %v", none, err)
	}
}

func TestAccountRepoDueAccounts(t *testing.T) {
	defer cleanup(t)
	ctx := context.Background()

	seedContent(t, &model.Content{ID: "acct1", Type: "bank_account", Metadata: map[string]json.RawMessage{
		"teller_account": json.RawMessage(`{"account_id":"acc_1","access_token":"enc:tok"}`),
	}})
	// Bank account without teller metadata is skipped.
	seedContent(t, &model.Content{ID: "acct2", Type: "bank_account"})
	// Non-account content is never listed.
	seedContent(t, &model.Content{ID: "note", Type: "text", Metadata: map[string]json.RawMessage{
		"teller_account": json.RawMessage(`{"account_id":"acc_x","access_token":"t"}`),
	}})

	repo := NewAccountRepo(testPool)
	refs, err := repo.DueAccounts(ctx)
	if err != nil {
		t.Fatalf("DueAccounts: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %+v, want exactly the configured bank account", refs)
	}
	if refs[0].ContentID != "acct1" || refs[0].AccountID != "acc_1" || refs[0].AccessToken != "enc:tok" {
		t.Fatalf("ref = %+v", refs[0])
	}
}
