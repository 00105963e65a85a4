package flow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"

	"github.com/wellnesscouncil/relay/pkg/errors"
	"github.com/wellnesscouncil/relay/pkg/logging"
)

// Every flow exposes exactly one input node with a document output;
// these are the fixed names Bedrock assigns to it.
const (
	flowInputNodeName   = "FlowInputNode"
	flowInputOutputName = "document"
)

// Invoker is the subset of the Bedrock agent runtime API the client
// uses. Satisfied by *bedrockagentruntime.Client.
type Invoker interface {
	InvokeFlow(ctx context.Context, params *bedrockagentruntime.InvokeFlowInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeFlowOutput, error)
}

// Request identifies one invocation of the remote pipeline.
type Request struct {
	// Payload is the caller's context data, already serialized. It is
	// forwarded as the flow's input document without interpretation.
	Payload     json.RawMessage
	FlowID      string
	FlowAliasID string
}

// Client wraps invocation of the remote streaming pipeline.
type Client struct {
	api Invoker
	log *logging.Logger
}

// NewClient creates a flow client on top of a Bedrock agent runtime
// API. A nil logger disables client-side logging.
func NewClient(api Invoker, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NewNop()
	}
	return &Client{api: api, log: log}
}

// Invoke starts the flow and returns a handle to its streamed output.
// The payload is validated before any network call is attempted.
func (c *Client) Invoke(ctx context.Context, req Request) (Stream, error) {
	if req.FlowID == "" || req.FlowAliasID == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "flow identifier and alias must be non-empty")
	}

	var value any
	if err := json.Unmarshal(req.Payload, &value); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "context data is not valid JSON")
	}

	input := &bedrockagentruntime.InvokeFlowInput{
		FlowIdentifier:      aws.String(req.FlowID),
		FlowAliasIdentifier: aws.String(req.FlowAliasID),
		Inputs: []types.FlowInput{
			{
				NodeName:       aws.String(flowInputNodeName),
				NodeOutputName: aws.String(flowInputOutputName),
				Content: &types.FlowInputContentMemberDocument{
					Value: document.NewLazyDocument(value),
				},
			},
		},
	}

	out, err := c.api.InvokeFlow(ctx, input)
	if err != nil {
		classified := classifyInvokeError(err)
		c.log.Error(logging.CategoryNetwork, "invoke_failed", classified.Error(), map[string]any{
			"flow_id": req.FlowID,
		})
		return nil, classified
	}

	c.log.Debug(logging.CategoryNetwork, "invoke_accepted", "flow invocation accepted", map[string]any{
		"flow_id": req.FlowID,
	})
	return newSDKStream(out.GetStream()), nil
}

// classifyInvokeError separates remote-side rejections from plain
// connectivity failures so the caller can tell which one it was.
func classifyInvokeError(err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return errors.Wrap(err, errors.ErrCodeRemoteRejection,
			fmt.Sprintf("flow rejected the request: %s", apiErr.ErrorCode()))
	}
	return errors.Wrap(err, errors.ErrCodeTransport, "failed to reach flow endpoint")
}

// classifyEvent maps one wire-level stream union member onto the
// relay's event model.
func classifyEvent(ev types.FlowResponseStream) Event {
	switch e := ev.(type) {
	case *types.FlowResponseStreamMemberFlowOutputEvent:
		if doc, ok := e.Value.Content.(*types.FlowOutputContentMemberDocument); ok {
			return OutputChunk{Text: documentText(doc.Value)}
		}
		return Unknown{Kind: "flow_output"}
	case *types.FlowResponseStreamMemberFlowCompletionEvent:
		return Completion{Reason: string(e.Value.CompletionReason)}
	default:
		return Unknown{Kind: fmt.Sprintf("%T", ev)}
	}
}

// documentText renders a flow output document as reply text. String
// documents pass through verbatim; anything else is re-serialized so
// the caller still sees the content.
func documentText(doc document.Interface) string {
	if doc == nil {
		return ""
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// sdkStream adapts the SDK event stream to the Stream interface. A
// pump goroutine classifies wire events as they arrive; closing the
// stream releases the pump even if the consumer stopped reading.
type sdkStream struct {
	src       *bedrockagentruntime.InvokeFlowEventStream
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSDKStream(src *bedrockagentruntime.InvokeFlowEventStream) *sdkStream {
	s := &sdkStream{
		src:    src,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *sdkStream) pump() {
	defer close(s.events)
	for raw := range s.src.Events() {
		select {
		case s.events <- classifyEvent(raw):
		case <-s.done:
			return
		}
	}
}

func (s *sdkStream) Events() <-chan Event {
	return s.events
}

func (s *sdkStream) Err() error {
	if err := s.src.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "flow stream failed")
	}
	return nil
}

func (s *sdkStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.src.Close()
}
