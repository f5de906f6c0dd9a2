package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

func TestTaskDispatcher_Validate(t *testing.T) {
	d := NewTaskDispatcher(NewSupervisorRegistry(), nil, nil)

	cases := []struct {
		name    string
		req     TaskRequest
		want    TaskRequest
		wantErr bool
	}{
		{
			name: "normalizes kind and drops match id",
			req:  TaskRequest{Kind: " Main-Cycle ", MatchID: 7},
			want: TaskRequest{Kind: TaskMainCycle},
		},
		{
			name: "settle match keeps id and delay",
			req:  TaskRequest{Kind: TaskSettleMatch, MatchID: 7, Delay: time.Minute},
			want: TaskRequest{Kind: TaskSettleMatch, MatchID: 7, Delay: time.Minute},
		},
		{name: "settle match needs id", req: TaskRequest{Kind: TaskSettleMatch}, wantErr: true},
		{name: "unknown kind", req: TaskRequest{Kind: "resync"}, wantErr: true},
		{name: "negative delay", req: TaskRequest{Kind: TaskLiveCycle, Delay: -time.Second}, wantErr: true},
		{name: "delay too long", req: TaskRequest{Kind: TaskStaleSweep, Delay: 25 * time.Hour}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Validate(tc.req)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected request: got=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestTaskDispatcher_DedupKey(t *testing.T) {
	d := NewTaskDispatcher(NewSupervisorRegistry(), nil, nil)
	at := time.Date(2026, time.March, 14, 12, 30, 45, 0, time.UTC)

	got := d.DedupKey(TaskRequest{Kind: TaskSettleMatch, MatchID: 42}, at)
	if got != "settle-match-42-20260314T123000Z" {
		t.Fatalf("unexpected key: %s", got)
	}
	if same := d.DedupKey(TaskRequest{Kind: TaskSettleMatch, MatchID: 42}, at.Add(10*time.Second)); same != got {
		t.Fatalf("expected same slot key, got=%s", same)
	}
	if next := d.DedupKey(TaskRequest{Kind: TaskSettleMatch, MatchID: 42}, at.Add(time.Minute)); next == got {
		t.Fatal("expected a new key in the next slot")
	}
	if all := d.DedupKey(TaskRequest{Kind: TaskMainCycle}, at); all != "main-cycle-all-20260314T123000Z" {
		t.Fatalf("unexpected key: %s", all)
	}
}

func TestTaskDispatcher_RunCycleTask(t *testing.T) {
	registry := NewSupervisorRegistry()
	calls := 0
	s, _ := newTestSupervisor(SupervisorSettlement, func(context.Context, *logging.Logger) (map[string]any, error) {
		calls++
		return nil, nil
	})
	if err := registry.Register(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewTaskDispatcher(registry, nil, nil)

	if err := d.Run(context.Background(), Task{Kind: TaskSettlementSweep}); err != nil {
		t.Fatalf("run settlement sweep: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one cycle, got=%d", calls)
	}
	if err := d.Run(context.Background(), Task{Kind: TaskMainCycle}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unregistered loop, got=%v", err)
	}
}
