package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/sdk"
)

type nodeOutcome struct {
	res *sdk.Result
	err error
}

func runAsync(node sdk.Node, ec *sdk.ExecutionContext) chan nodeOutcome {
	ch := make(chan nodeOutcome, 1)
	go func() {
		res, err := node.Execute(context.Background(), ec)
		ch <- nodeOutcome{res, err}
	}()
	return ch
}

// eventTap records events from an execution while tests wait on
// specific types.
type eventTap struct {
	sub  *events.ChannelSub
	seen []string
}

func tapEvents(ec *sdk.ExecutionContext) *eventTap {
	return &eventTap{sub: ec.Runtime.Emitter().SubscribeChan(32)}
}

func (tap *eventTap) await(t *testing.T, eventType string) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-tap.sub.Events():
			tap.seen = append(tap.seen, ev.Type)
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s, saw %v", eventType, tap.seen)
		}
	}
}

func (tap *eventTap) drain() []string {
	for {
		select {
		case ev := <-tap.sub.Events():
			tap.seen = append(tap.seen, ev.Type)
		default:
			return tap.seen
		}
	}
}

func awaitOutcome(t *testing.T, ch chan nodeOutcome) *sdk.Result {
	t.Helper()
	select {
	case out := <-ch:
		if out.err != nil {
			t.Fatalf("Execute: %v", out.err)
		}
		return out.res
	case <-time.After(2 * time.Second):
		t.Fatal("node did not finish")
	}
	return nil
}

func TestHumanInputSubmitted(t *testing.T) {
	ec := testEC(t, map[string]interface{}{
		"prompt":        "Approve?",
		"defaultValues": map[string]interface{}{"channel": "web", "comment": ""},
	}, nil)
	tap := tapEvents(ec)

	outcome := runAsync(&humanInputNode{}, ec)

	required := tap.await(t, events.HumanInputRequired)
	if required.Data["prompt"] != "Approve?" {
		t.Errorf("prompt = %#v", required.Data["prompt"])
	}
	tokenID, _ := required.Data["tokenId"].(string)
	if tokenID == "" {
		t.Fatal("human:input:required carries no tokenId")
	}

	if err := ec.Runtime.Resume(tokenID, map[string]interface{}{"comment": "ok"}); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	result := awaitOutcome(t, outcome)
	first := result.First()
	if first.Name() != "submitted" {
		t.Fatalf("edge = %s", first.Name())
	}
	input, _ := first.Data()["input"].(map[string]interface{})
	if input["comment"] != "ok" {
		t.Errorf("input comment = %#v, resume data should win", input["comment"])
	}
	if input["channel"] != "web" {
		t.Errorf("input channel = %#v, defaults should fill gaps", input["channel"])
	}

	want := []string{
		events.WorkflowPaused,
		events.HumanInputRequired,
		events.HumanInputReceived,
		events.WorkflowResumed,
	}
	got := tap.drain()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestHumanInputTimeout(t *testing.T) {
	ec := testEC(t, map[string]interface{}{"timeoutMs": 30}, nil)

	result := awaitOutcome(t, runAsync(&humanInputNode{}, ec))
	if result.First().Name() != "timeout" {
		t.Fatalf("edge = %s, want timeout", result.First().Name())
	}
	if len(ec.Runtime.ActiveTokens()) != 0 {
		t.Error("timed-out token still in active set")
	}
}

func TestHumanInputCancelled(t *testing.T) {
	ec := testEC(t, map[string]interface{}{}, nil)
	tap := tapEvents(ec)

	outcome := runAsync(&humanInputNode{}, ec)
	tap.await(t, events.HumanInputRequired)

	ec.Runtime.Cancel(nil)

	result := awaitOutcome(t, outcome)
	first := result.First()
	if first.Name() != "error" {
		t.Fatalf("edge = %s, want error", first.Name())
	}
	if first.Data()["reason"] == nil {
		t.Error("cancel edge has no reason")
	}
}

func TestApproveExpenseAutoApprove(t *testing.T) {
	ec := testEC(t, map[string]interface{}{
		"amount":           50,
		"autoApproveBelow": 100,
	}, nil)
	tap := tapEvents(ec)

	result, err := (&approveExpenseNode{}).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	first := result.First()
	if first.Name() != "approved" || first.Data()["auto"] != true {
		t.Fatalf("edge = %s, payload = %#v", first.Name(), first.Data())
	}

	if v, _ := ec.State.Get("approvalDecision.decision"); v != "approved" {
		t.Errorf("approvalDecision.decision = %#v", v)
	}
	if got := tap.drain(); len(got) != 0 {
		t.Errorf("auto-approve emitted %v, want no pause events", got)
	}
}

func TestApproveExpenseDecisions(t *testing.T) {
	cases := []struct {
		decision string
		edge     string
	}{
		{"approved", "approved"},
		{"rejected", "rejected"},
		{"escalate", "needsInfo"},
	}
	for _, tc := range cases {
		t.Run(tc.decision, func(t *testing.T) {
			ec := testEC(t, map[string]interface{}{
				"amount":           500,
				"autoApproveBelow": 100,
				"requester":        "kim",
			}, nil)
			tap := tapEvents(ec)

			outcome := runAsync(&approveExpenseNode{}, ec)

			required := tap.await(t, events.HumanInputRequired)
			if n, ok := required.Data["amount"].(float64); !ok || n != 500 {
				t.Errorf("required amount = %#v", required.Data["amount"])
			}
			tokenID, _ := required.Data["tokenId"].(string)

			err := ec.Runtime.Resume(tokenID, map[string]interface{}{
				"decision": tc.decision,
				"comment":  "looked at it",
			})
			if err != nil {
				t.Fatalf("Resume: %v", err)
			}

			result := awaitOutcome(t, outcome)
			if result.First().Name() != tc.edge {
				t.Fatalf("edge = %s, want %s", result.First().Name(), tc.edge)
			}

			if v, _ := ec.State.Get("approvalDecision.decision"); v != tc.decision {
				t.Errorf("approvalDecision.decision = %#v, want %s", v, tc.decision)
			}
			if v, _ := ec.State.Get("approvalDecision.comment"); v != "looked at it" {
				t.Errorf("approvalDecision.comment = %#v", v)
			}
		})
	}
}

func TestApproveExpenseTimeout(t *testing.T) {
	ec := testEC(t, map[string]interface{}{
		"amount":    500,
		"timeoutMs": 30,
	}, nil)

	result := awaitOutcome(t, runAsync(&approveExpenseNode{}, ec))
	if result.First().Name() != "timeout" {
		t.Fatalf("edge = %s, want timeout", result.First().Name())
	}
}
