package nodes

import (
	"context"
	"errors"

	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/runtime"
	"github.com/flowscript/orchestrator/sdk"
)

// humanInputNode pauses the execution and waits for external input.
// The resume data arrives on the submitted edge; a configured timeout
// routes to the timeout edge and execution cancel to the error edge.
type humanInputNode struct{}

func (n *humanInputNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:             "humanInput",
		Description:      "Pauses the workflow until a person submits input",
		Type:             sdk.TypeHuman,
		ExpectedEdges:    []string{"submitted", "timeout", "error"},
		HumanInteraction: &sdk.HumanInteraction{},
	}
}

func (n *humanInputNode) Execute(ctx context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	token, err := ec.Runtime.Pause()
	if err != nil {
		return nil, err
	}

	required := map[string]interface{}{
		"nodeId":   ec.NodeID,
		"nodeName": ec.NodeName,
		"tokenId":  token.ID(),
	}
	if prompt, ok := sdk.StringValue(ec.Config, "prompt"); ok {
		required["prompt"] = prompt
	}
	if schema, ok := sdk.MapValue(ec.Config, "formSchema"); ok {
		required["formSchema"] = schema
	}
	ec.Runtime.Emit(events.HumanInputRequired, required)

	waitCtx, cancel := waitContext(ctx, ec, n.Metadata())
	defer cancel()

	input, err := ec.Runtime.WaitForResume(waitCtx, token)
	if edge := waitOutcome(err); edge != nil {
		return edge, nil
	}
	if err != nil {
		return nil, err
	}

	if defaults, ok := sdk.MapValue(ec.Config, "defaultValues"); ok {
		merged := make(map[string]interface{}, len(defaults)+len(input))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range input {
			merged[k] = v
		}
		input = merged
	}
	return sdk.NewResult().StaticEdge("submitted", map[string]interface{}{
		"input": input,
	}), nil
}

// approveExpenseNode gates an expense on a human decision. Amounts
// under the auto-approve threshold skip the pause entirely; otherwise
// the resume input's decision field selects the outgoing edge and the
// full input is recorded under state approvalDecision.
type approveExpenseNode struct{}

func (n *approveExpenseNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "approveExpense",
		Description: "Requests human approval for an expense",
		Type:        sdk.TypeHuman,
		AIHints: map[string]interface{}{
			"example": map[string]interface{}{
				"amount":           "{{expense.amount}}",
				"autoApproveBelow": 100,
			},
		},
		ExpectedEdges: []string{"approved", "rejected", "needsInfo", "timeout", "error"},
		HumanInteraction: &sdk.HumanInteraction{
			FormSchema: map[string]interface{}{
				"decision": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"approved", "rejected", "needsInfo"},
				},
				"comment": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func (n *approveExpenseNode) Execute(ctx context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	amount, hasAmount := sdk.NumberValue(ec.Config, "amount")
	threshold, hasThreshold := sdk.NumberValue(ec.Config, "autoApproveBelow")
	if hasAmount && hasThreshold && amount < threshold {
		ec.State.Set("approvalDecision", map[string]interface{}{
			"decision": "approved",
			"auto":     true,
			"amount":   amount,
		})
		return sdk.NewResult().StaticEdge("approved", map[string]interface{}{
			"amount": amount,
			"auto":   true,
		}), nil
	}

	token, err := ec.Runtime.Pause()
	if err != nil {
		return nil, err
	}

	required := map[string]interface{}{
		"nodeId":     ec.NodeID,
		"nodeName":   ec.NodeName,
		"tokenId":    token.ID(),
		"formSchema": n.Metadata().HumanInteraction.FormSchema,
	}
	if hasAmount {
		required["amount"] = amount
	}
	if requester, ok := sdk.StringValue(ec.Config, "requester"); ok {
		required["requester"] = requester
	}
	ec.Runtime.Emit(events.HumanInputRequired, required)

	waitCtx, cancel := waitContext(ctx, ec, n.Metadata())
	defer cancel()

	input, err := ec.Runtime.WaitForResume(waitCtx, token)
	if edge := waitOutcome(err); edge != nil {
		return edge, nil
	}
	if err != nil {
		return nil, err
	}

	ec.State.Set("approvalDecision", input)

	decision, _ := sdk.StringValue(input, "decision")
	edge := "needsInfo"
	switch decision {
	case "approved", "rejected":
		edge = decision
	}
	return sdk.NewResult().StaticEdge(edge, map[string]interface{}{
		"decision": decision,
		"input":    input,
	}), nil
}

// waitContext derives the resume-wait context: a configured timeoutMs
// wins, then the node's advisory default; zero waits indefinitely.
func waitContext(ctx context.Context, ec *sdk.ExecutionContext, meta sdk.Metadata) (context.Context, context.CancelFunc) {
	timeout, ok := sdk.DurationMS(ec.Config, "timeoutMs")
	if !ok && meta.HumanInteraction != nil {
		timeout = meta.HumanInteraction.DefaultTimeout
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

// waitOutcome maps the terminal wait errors onto their edges; other
// errors stay with the caller.
func waitOutcome(err error) *sdk.Result {
	switch {
	case errors.Is(err, runtime.ErrTimeout):
		return sdk.NewResult().StaticEdge("timeout", map[string]interface{}{})
	case errors.Is(err, runtime.ErrCancelled):
		return sdk.NewResult().StaticEdge("error", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return nil
}
