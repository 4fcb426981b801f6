package sqlite

import (
	"context"
	"os"
	"testing"

	"quotewatch/internal/domain/model"
)

func openTemp(t *testing.T, name string) *Repo {
	t.Helper()
	repo, err := New(name)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
		os.Remove(name)
	})
	return repo
}

func TestSQLiteRepoPutGet(t *testing.T) {
	repo := openTemp(t, "test_put.db")
	ctx := context.Background()

	name := "台積電"
	rec := model.StockRecord{
		Stock:     model.Stock{Symbol: "2330", Name: &name, Price: 505, Change: 5, ChangePercent: 1, Volume: 100, IsUserFavorite: true},
		IsDefault: true,
		CreatedAt: 1000,
	}
	if err := repo.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := repo.Get(ctx, "2330")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Stock.Price != 505 || got.Stock.DisplayName() != "台積電" || !got.Stock.IsUserFavorite || !got.IsDefault {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.UpdatedAt != 1000 {
		t.Errorf("expected updated_at=1000, got %d", got.UpdatedAt)
	}

	missing, err := repo.Get(ctx, "9999")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing symbol, got %v, %v", missing, err)
	}
}

func TestSQLiteRepoUpsertQuoteKeepsFavorite(t *testing.T) {
	repo := openTemp(t, "test_upsert.db")
	ctx := context.Background()

	if err := repo.MarkFavorite(ctx, "2330", true, 1); err != nil {
		t.Fatalf("MarkFavorite failed: %v", err)
	}
	if err := repo.UpsertQuote(ctx, model.Stock{Symbol: "2330", Price: 510}, 2); err != nil {
		t.Fatalf("UpsertQuote failed: %v", err)
	}

	got, _ := repo.Get(ctx, "2330")
	if got == nil || !got.Stock.IsUserFavorite || got.Stock.Price != 510 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt != 1 || got.UpdatedAt != 2 {
		t.Errorf("unexpected timestamps: %d, %d", got.CreatedAt, got.UpdatedAt)
	}

	favs, err := repo.ListFavorites(ctx)
	if err != nil || len(favs) != 1 {
		t.Fatalf("ListFavorites: %v, %d", err, len(favs))
	}

	if err := repo.MarkFavorite(ctx, "2330", false, 3); err != nil {
		t.Fatalf("MarkFavorite failed: %v", err)
	}
	got, _ = repo.Get(ctx, "2330")
	if got.Stock.IsUserFavorite || got.Stock.Price != 510 {
		t.Errorf("unexpected record after unmark: %+v", got)
	}
}

func TestSQLiteRepoListAndDelete(t *testing.T) {
	repo := openTemp(t, "test_list.db")
	ctx := context.Background()

	repo.UpsertQuote(ctx, model.Stock{Symbol: "2454"}, 1)
	repo.UpsertQuote(ctx, model.Stock{Symbol: "2330"}, 1)
	repo.UpsertQuote(ctx, model.Stock{Symbol: "2317"}, 1)

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 3 || all[0].Stock.Symbol != "2317" {
		t.Errorf("unexpected list: %+v", all)
	}

	if err := repo.Delete(ctx, "2317"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	all, _ = repo.ListAll(ctx)
	if len(all) != 2 {
		t.Errorf("expected 2 after delete, got %d", len(all))
	}
}

func TestSQLiteRepoPreferences(t *testing.T) {
	repo := openTemp(t, "test_prefs.db")
	ctx := context.Background()

	got, err := repo.Read(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty prefs, got %v, %v", got, err)
	}

	if err := repo.Write(ctx, []string{"2454", "2330"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := repo.Write(ctx, []string{"2330", "2603", "2330"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, _ = repo.Read(ctx)
	if len(got) != 2 || got[0] != "2330" || got[1] != "2603" {
		t.Errorf("unexpected prefs: %v", got)
	}
}
