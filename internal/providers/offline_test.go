package providers

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/cliphaven/cliphaven/pkg/models"
)

func TestOffline_GenerateTags(t *testing.T) {
	o := NewOffline()
	content := "Kubernetes config: the kubernetes deployment uses a config map. Deployment 42 deployment."

	res, err := o.GenerateTags(context.Background(), content)
	if err != nil {
		t.Fatalf("GenerateTags() error = %v", err)
	}
	want := []string{"deployment", "kubernetes", "config", "uses", "map"}
	if !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("Tags = %v, want %v", res.Tags, want)
	}
	if res.Provider != OfflineID {
		t.Errorf("Provider = %q", res.Provider)
	}
}

func TestOffline_GenerateAnswerExtractsRelevantSentence(t *testing.T) {
	o := NewOffline()
	items := []models.Item{
		{ID: "1", Content: "Lunch is at noon. Bring snacks."},
		{ID: "2", Content: "Staging cluster lives in eu-west. The kubeconfig is in ~/.kube/staging."},
	}

	c, err := o.GenerateAnswer(context.Background(), "where is the staging kubeconfig?", items)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if !strings.Contains(c.Content, "kubeconfig is in ~/.kube/staging") {
		t.Errorf("Content = %q, want the kubeconfig sentence", c.Content)
	}
	if strings.Contains(c.Content, "Lunch") {
		t.Errorf("Content = %q, should not include unrelated sentences", c.Content)
	}
}

func TestOffline_AlwaysAvailableAndLocal(t *testing.T) {
	o := NewOffline()
	if !o.IsAvailable(context.Background()) {
		t.Error("offline provider must always be available")
	}
	if o.Descriptor().Locality != models.LocalityLocal {
		t.Error("offline provider must be local")
	}

	c, err := o.GenerateAnswer(context.Background(), "anything", nil)
	if err != nil || c.Content == "" {
		t.Errorf("GenerateAnswer() with no items = %+v, %v", c, err)
	}
}

func TestOffline_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewOffline().GenerateTags(ctx, "x"); err == nil {
		t.Error("GenerateTags() on a canceled context should fail")
	}
}
