package vectorstore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cliphaven/cliphaven/pkg/models"
)

func TestEmbeddedStore_SearchOrdersByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewEmbeddedStore()
	err := s.Upsert(ctx, []models.VectorDoc{
		{ID: "x", Vector: []float64{1, 0}},
		{ID: "y", Vector: []float64{0, 1}},
		{ID: "xy", Vector: []float64{1, 1}},
		{ID: "other-dims", Vector: []float64{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := s.Search(ctx, []float64{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].Doc.ID != "x" || got[1].Doc.ID != "xy" {
		t.Errorf("Search() = %+v, want [x xy]", got)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v, %v", got[0].Score, got[1].Score)
	}

	if n, _ := s.Count(ctx); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
	s.Delete(ctx, []string{"x", "missing"})
	if n, _ := s.Count(ctx); n != 3 {
		t.Errorf("Count() after Delete = %d, want 3", n)
	}
}

func TestEmbeddedStore_Capacity(t *testing.T) {
	ctx := context.Background()
	s := NewEmbeddedStore(WithMaxVectors(2))
	if err := s.Upsert(ctx, []models.VectorDoc{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Overwrites do not count against the cap.
	if err := s.Upsert(ctx, []models.VectorDoc{{ID: "a", Content: "new"}}); err != nil {
		t.Errorf("Upsert(existing) error = %v", err)
	}
	if err := s.Upsert(ctx, []models.VectorDoc{{ID: "c"}}); !errors.Is(err, ErrCapacity) {
		t.Errorf("Upsert() = %v, want ErrCapacity", err)
	}
	if err := s.Upsert(ctx, []models.VectorDoc{{}}); err == nil {
		t.Error("Upsert() without id should fail")
	}
}

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral([]float64{1, 2.5, -0.125}); got != "[1,2.5,-0.125]" {
		t.Errorf("vectorLiteral() = %s", got)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("vectorLiteral(nil) = %s", got)
	}
}

// keywordDriver embeds text as a bag of fixed keywords.
type keywordDriver struct {
	kind  string
	words []string
	err   error
	calls int
}

func (d *keywordDriver) Kind() string      { return d.kind }
func (d *keywordDriver) Dimensions() int   { return len(d.words) }
func (d *keywordDriver) MaxBatchSize() int { return 16 }
func (d *keywordDriver) HealthCheck(context.Context) error {
	return d.err
}

func (d *keywordDriver) Embed(_ context.Context, texts []string) ([][]float64, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, len(d.words))
		for j, w := range d.words {
			if strings.Contains(strings.ToLower(text), w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestSemanticIndex_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	driver := &keywordDriver{kind: "ollama", words: []string{"cluster", "food", "time"}}
	x := NewSemanticIndex(driver, NewEmbeddedStore())

	items := []*models.Item{
		{ID: "1", EmbeddingID: "emb-1", Content: "cluster manifests", Kind: models.ItemKindText},
		{ID: "2", EmbeddingID: "emb-2", Content: "food shopping", Kind: models.ItemKindText},
		{ID: "3", Content: "cluster time", Kind: models.ItemKindText, Sensitive: true},
	}
	for _, it := range items {
		if err := x.Index(ctx, it); err != nil {
			t.Fatalf("Index(%s) error = %v", it.ID, err)
		}
	}

	hits, err := x.Search(ctx, "cluster", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	got := []string{hits[0].ExternalID, hits[1].ExternalID}
	if !reflect.DeepEqual(got, []string{"emb-1", "3"}) {
		t.Errorf("Search() ids = %v, want [emb-1 3]", got)
	}

	x.Remove(ctx, items[0])
	if n, _ := x.Count(ctx); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestSemanticIndex_Skips(t *testing.T) {
	ctx := context.Background()
	driver := &keywordDriver{kind: "openai", words: []string{"a"}}
	x := NewSemanticIndex(driver, NewEmbeddedStore())

	cases := []*models.Item{
		{ID: "img", Kind: models.ItemKindImage, Content: "a"},
		{ID: "empty", Kind: models.ItemKindText, Content: "  "},
		{ID: "secret", Kind: models.ItemKindText, Content: "a password", Sensitive: true},
	}
	for _, it := range cases {
		if err := x.Index(ctx, it); !errors.Is(err, ErrSkipped) {
			t.Errorf("Index(%s) = %v, want ErrSkipped", it.ID, err)
		}
	}
	if driver.calls != 0 {
		t.Errorf("driver called %d times, want 0", driver.calls)
	}
}

func TestSemanticIndex_SearchErrors(t *testing.T) {
	ctx := context.Background()
	driver := &keywordDriver{kind: "ollama", words: []string{"a"}, err: errors.New("daemon down")}
	x := NewSemanticIndex(driver, NewEmbeddedStore())

	if _, err := x.Search(ctx, "anything", 5); err == nil {
		t.Error("Search() should surface driver errors")
	}
	if hits, err := x.Search(ctx, "  ", 5); hits != nil || err != nil {
		t.Errorf("Search(blank) = %v, %v", hits, err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("embedded", NewEmbeddedStore())
	if d, err := r.Get("embedded"); err != nil || d.Kind() != "embedded" {
		t.Errorf("Get() = %v, %v", d, err)
	}
	if _, err := r.Get("pgvector"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("Get(pgvector) = %v, want ErrDriverNotFound", err)
	}
	if errs := r.HealthCheckAll(context.Background()); errs["embedded"] != nil {
		t.Errorf("HealthCheckAll() = %v", errs)
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"embedded"}) {
		t.Errorf("List() = %v", got)
	}
}
