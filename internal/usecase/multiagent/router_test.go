package multiagent

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cheerhou/DevoLight/internal/domain"
)

func newTestRouter() *Router {
	ids := IDGeneratorFunc(func(time.Time) string { return "session_test" })
	clock := fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewRouter(DefaultRegistry(), DefaultRouterConfig(), NewContextBuilder(ids, clock))
}

func TestRouteSingleByID(t *testing.T) {
	r := newTestRouter()
	res, err := r.Route(context.Background(), Request{
		Message: "约翰福音3:16是什么意思?",
		Mode:    domain.ModeSingle,
		AgentID: "biblical-historian-luke",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(res.SelectedAgentIDs) != 1 || res.SelectedAgentIDs[0] != "biblical-historian-luke" {
		t.Errorf("SelectedAgentIDs = %v", res.SelectedAgentIDs)
	}
	if res.Routing.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", res.Routing.Confidence)
	}
	if res.Routing.Reasoning != "user specified 路加笔者" {
		t.Errorf("Reasoning = %q", res.Routing.Reasoning)
	}
	if res.Routing.Scores != nil || res.Routing.Sequence != nil {
		t.Error("single mode should not carry scores or sequence")
	}
	sc := res.Context.Scripture
	if sc == nil || sc.Book != "约翰福音" || sc.Chapter != "3" || sc.Verse == nil || *sc.Verse != "16" {
		t.Errorf("Scripture = %+v", sc)
	}
	if res.Context.PrimaryAgent.ID != "biblical-historian-luke" {
		t.Errorf("PrimaryAgent = %+v", res.Context.PrimaryAgent)
	}
	if res.Context.SessionID != "session_test" || res.Context.Timestamp != "2024-01-01T00:00:00.000Z" {
		t.Errorf("context = %+v", res.Context)
	}
}

func TestRouteSingleByKey(t *testing.T) {
	res, err := newTestRouter().Route(context.Background(), Request{Message: "hi", Mode: domain.ModeSingle, AgentID: KeyCompanion})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Routing.PrimaryAgentID != "barnabas-spiritual-companion" {
		t.Errorf("PrimaryAgentID = %q", res.Routing.PrimaryAgentID)
	}
}

func TestRouteSingleUnknownAgent(t *testing.T) {
	for _, id := range []string{"nonexistent-agent", ""} {
		_, err := newTestRouter().Route(context.Background(), Request{Message: "hi", Mode: domain.ModeSingle, AgentID: id})
		if !errors.Is(err, domain.ErrUnknownAgent) {
			t.Errorf("AgentID %q: expected ErrUnknownAgent, got %v", id, err)
		}
		if domain.ErrorCodeOf(err) != domain.CodeUnknownAgent {
			t.Errorf("code = %s", domain.ErrorCodeOf(err))
		}
	}
}

func TestRouteUnknownMode(t *testing.T) {
	_, err := newTestRouter().Route(context.Background(), Request{Message: "hi", Mode: "parallel"})
	if !errors.Is(err, domain.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if domain.ErrorCodeOf(err) != domain.CodeUnknownMode {
		t.Errorf("code = %s", domain.ErrorCodeOf(err))
	}
}

func TestRouteIntelligentFallback(t *testing.T) {
	res, err := newTestRouter().Route(context.Background(), Request{Message: "hello", Mode: domain.ModeIntelligent})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if diff := cmp.Diff([]string{"antioch-biblical-teacher"}, res.SelectedAgentIDs); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	if res.Routing.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", res.Routing.Confidence)
	}
	if res.Routing.Reasoning != "default selection" {
		t.Errorf("Reasoning = %q", res.Routing.Reasoning)
	}
	if len(res.Routing.Scores) != 4 {
		t.Errorf("Scores should cover every agent, got %d", len(res.Routing.Scores))
	}
}

func TestRouteIntelligentSingleKeywordFiltered(t *testing.T) {
	// One keyword hit scores exactly 0.3, which does not clear the threshold.
	res, err := newTestRouter().Route(context.Background(), Request{Message: "工作压力很大", Mode: domain.ModeIntelligent})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Routing.PrimaryAgentID != "antioch-biblical-teacher" || res.Routing.Reasoning != "default selection" {
		t.Errorf("expected fallback, got %+v", res.Routing)
	}
}

func TestRouteIntelligentProfileAffinity(t *testing.T) {
	res, err := newTestRouter().Route(context.Background(), Request{
		Message: "工作压力很大",
		Mode:    domain.ModeIntelligent,
		Profile: &domain.UserProfile{Profession: "engineer"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if diff := cmp.Diff([]string{"spiritual-life-mentor"}, res.SelectedAgentIDs); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(res.Routing.Confidence-0.7) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.7", res.Routing.Confidence)
	}
	if res.Context.UserProfile.Profession != "engineer" {
		t.Errorf("profile not carried into context")
	}
}

func TestRouteIntelligentTopTwo(t *testing.T) {
	res, err := newTestRouter().Route(context.Background(), Request{
		Message: "为什么耶稣当时要这样做",
		Mode:    domain.ModeIntelligent,
		Profile: &domain.UserProfile{SpiritualState: "感到疲惫"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	// luke 0.7, antioch 0.6, barnabas 0.5: only the top two survive.
	want := []string{"biblical-historian-luke", "antioch-biblical-teacher"}
	if diff := cmp.Diff(want, res.SelectedAgentIDs); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	if res.Routing.PrimaryAgentID != want[0] {
		t.Errorf("PrimaryAgentID = %q", res.Routing.PrimaryAgentID)
	}
	if res.Routing.Reasoning != "content analysis selected 路加笔者" {
		t.Errorf("Reasoning = %q", res.Routing.Reasoning)
	}
}

func TestRouteIntelligentDeterministic(t *testing.T) {
	r := newTestRouter()
	req := Request{Message: "在家庭生活中如何祷告?", Mode: domain.ModeIntelligent, Profile: &domain.UserProfile{Concerns: []string{"family"}}}
	first, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Route(context.Background(), req)
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("results differ (-first +again):\n%s", diff)
		}
	}
}

func TestRouteSequential(t *testing.T) {
	res, err := newTestRouter().Route(context.Background(), Request{Message: "诗篇23", Mode: domain.ModeSequential})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	wantIDs := []string{
		"antioch-biblical-teacher",
		"biblical-historian-luke",
		"spiritual-life-mentor",
		"barnabas-spiritual-companion",
	}
	if diff := cmp.Diff(wantIDs, res.SelectedAgentIDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if res.Routing.Confidence != 1.0 {
		t.Errorf("Confidence = %v", res.Routing.Confidence)
	}
	if len(res.Routing.Sequence) != 4 {
		t.Fatalf("Sequence length = %d", len(res.Routing.Sequence))
	}
	for i, step := range res.Routing.Sequence {
		if want := time.Duration(i) * 2000 * time.Millisecond; step.Delay != want {
			t.Errorf("step %d delay = %v, want %v", i, step.Delay, want)
		}
		if step.AgentID != wantIDs[i] {
			t.Errorf("step %d agent = %q", i, step.AgentID)
		}
	}
}

func TestRouteSequentialCustomStep(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.SequenceStep = 500 * time.Millisecond
	r := NewRouter(DefaultRegistry(), cfg, nil)
	res, err := r.Route(context.Background(), Request{Message: "hi", Mode: domain.ModeSequential})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got := res.Routing.Sequence[3].Delay; got != 1500*time.Millisecond {
		t.Errorf("last delay = %v, want 1.5s", got)
	}
}

func TestRouteFallbackAgentMissing(t *testing.T) {
	reg := MustNewRegistry(makeAgent("a", "a-1"))
	r := NewRouter(reg, DefaultRouterConfig(), nil)
	_, err := r.Route(context.Background(), Request{Message: "hello", Mode: domain.ModeIntelligent})
	if !errors.Is(err, domain.ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
}

func TestRouteInvariantsAllModes(t *testing.T) {
	r := newTestRouter()
	messages := []string{"hello", "约翰福音3:16", "工作中感到疲惫", "当时的历史背景", "John 3:16 why"}
	for _, msg := range messages {
		for _, mode := range []domain.Mode{domain.ModeSingle, domain.ModeIntelligent, domain.ModeSequential} {
			res, err := r.Route(context.Background(), Request{Message: msg, Mode: mode, AgentID: KeyTeacher})
			if err != nil {
				t.Fatalf("%s/%q: %v", mode, msg, err)
			}
			if err := r.Validate(res); err != nil {
				t.Errorf("%s/%q: Validate: %v", mode, msg, err)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		name string
		res  *domain.RoutingResult
		want error
	}{
		{"nil", nil, domain.ErrEmptySelection},
		{"empty", &domain.RoutingResult{}, domain.ErrEmptySelection},
		{"unknown id", &domain.RoutingResult{
			SelectedAgentIDs: []string{"antioch-biblical-teacher", "ghost"},
			Routing:          domain.Routing{PrimaryAgentID: "antioch-biblical-teacher"},
		}, domain.ErrUnknownAgent},
		{"key instead of id", &domain.RoutingResult{
			SelectedAgentIDs: []string{KeyTeacher},
			Routing:          domain.Routing{PrimaryAgentID: KeyTeacher},
		}, domain.ErrUnknownAgent},
		{"duplicate", &domain.RoutingResult{
			SelectedAgentIDs: []string{"antioch-biblical-teacher", "antioch-biblical-teacher"},
			Routing:          domain.Routing{PrimaryAgentID: "antioch-biblical-teacher"},
		}, domain.ErrInvalidInput},
		{"primary not selected", &domain.RoutingResult{
			SelectedAgentIDs: []string{"antioch-biblical-teacher"},
			Routing:          domain.Routing{PrimaryAgentID: "spiritual-life-mentor"},
		}, domain.ErrInvalidInput},
		{"ok", &domain.RoutingResult{
			SelectedAgentIDs: []string{"spiritual-life-mentor"},
			Routing:          domain.Routing{PrimaryAgentID: "spiritual-life-mentor"},
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.res)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRouterConfigDefaults(t *testing.T) {
	want := DefaultRouterConfig()
	want.MinScore = 0
	if diff := cmp.Diff(want, RouterConfig{}.withDefaults()); diff != "" {
		t.Errorf("withDefaults mismatch (-want +got):\n%s", diff)
	}

	neg := RouterConfig{MinScore: -1, FallbackConfidence: -1}.withDefaults()
	if neg.MinScore != 0.3 || neg.FallbackConfidence != 0.5 {
		t.Errorf("negative values = %v/%v, want defaults 0.3/0.5", neg.MinScore, neg.FallbackConfidence)
	}
}

func TestRouteIntelligentZeroMinScore(t *testing.T) {
	msg := "我想祷告"

	def, err := newTestRouter().Route(context.Background(), Request{Message: msg, Mode: domain.ModeIntelligent})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if def.Routing.Reasoning != ReasoningDefaultSelection {
		t.Errorf("default threshold: reasoning = %q, want fallback", def.Routing.Reasoning)
	}

	cfg := DefaultRouterConfig()
	cfg.MinScore = 0
	r := NewRouter(DefaultRegistry(), cfg, nil)
	res, err := r.Route(context.Background(), Request{Message: msg, Mode: domain.ModeIntelligent})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if diff := cmp.Diff([]string{"barnabas-spiritual-companion"}, res.SelectedAgentIDs); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(res.Routing.Confidence-0.3) > 1e-9 {
		t.Errorf("confidence = %v, want 0.3", res.Routing.Confidence)
	}
}

func TestRouterConcurrentCalls(t *testing.T) {
	r := NewRouter(DefaultRegistry(), DefaultRouterConfig(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			modes := []domain.Mode{domain.ModeSingle, domain.ModeIntelligent, domain.ModeSequential}
			res, err := r.Route(context.Background(), Request{Message: "为什么", Mode: modes[i%3], AgentID: KeyMentor})
			if err != nil {
				t.Errorf("Route: %v", err)
				return
			}
			if len(res.SelectedAgentIDs) == 0 {
				t.Error("empty selection")
			}
		}(i)
	}
	wg.Wait()
}
