// Package pipeline orchestrates the strict validate -> filter -> route ->
// forward sequence for one inbound webhook request.
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/janwychowaniak/flowbridge/internal/apperrors"
	"github.com/janwychowaniak/flowbridge/internal/config"
	"github.com/janwychowaniak/flowbridge/internal/filtering"
	"github.com/janwychowaniak/flowbridge/internal/forwarding"
	"github.com/janwychowaniak/flowbridge/internal/logging"
	"github.com/janwychowaniak/flowbridge/internal/routing"
)

// Stage names the pipeline step a RequestContext last reached.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFilter   Stage = "filter"
	StageRoute    Stage = "route"
	StageForward  Stage = "forward"
)

// RequestContext correlates validation, filtering, routing, forwarding,
// and logging for one inbound request. It never crosses a goroutine
// boundary, so it carries no synchronization.
type RequestContext struct {
	RequestID   string
	ReceiveTime time.Time
	DecodedBody map[string]interface{}
	Stage       Stage
}

// Result is the outcome of running the pipeline to completion: exactly
// what the HTTP Surface needs to render one terminal response.
type Result struct {
	StatusCode int
	Body       interface{}
}

// Pipeline wires the immutable Config to the Forwarder and Logger shared
// across every request.
type Pipeline struct {
	cfg       *config.Config
	forwarder *forwarding.Forwarder
	logger    *logging.Logger
}

func New(cfg *config.Config, forwarder *forwarding.Forwarder, logger *logging.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, forwarder: forwarder, logger: logger}
}

// errorBody is the shared shape of every non-2xx terminal response.
type errorBody struct {
	Error             string      `json:"error"`
	Message           string      `json:"message"`
	RequestID         string      `json:"request_id"`
	RoutingContext    interface{} `json:"routing_context,omitempty"`
	ForwardingContext interface{} `json:"forwarding_context,omitempty"`
}

// Process runs one inbound request through the full pipeline and returns
// the single terminal Result to write back to the client.
func (p *Pipeline) Process(ctx context.Context, rawBody []byte, inboundHeaders http.Header) Result {
	rc := &RequestContext{
		RequestID:   uuid.New().String(),
		ReceiveTime: time.Now(),
		Stage:       StageValidate,
	}

	body, result := p.validate(rc, rawBody)
	if result != nil {
		return *result
	}
	rc.DecodedBody = body

	rc.Stage = StageFilter
	admitted, filterSummary := filtering.Evaluate(p.cfg.Filtering, body)
	p.logger.Info(logging.CategoryFiltering, "filtering evaluated", map[string]interface{}{
		"request_id":             rc.RequestID,
		"rules_evaluated":        filterSummary.RulesEvaluated,
		"matched_rules":          filterSummary.MatchedRules,
		"default_action_applied": filterSummary.DefaultActionApplied,
	})
	if !admitted {
		return Result{
			StatusCode: http.StatusOK,
			Body: map[string]interface{}{
				"status":            "processed",
				"result":            "dropped",
				"request_id":        rc.RequestID,
				"filtering_summary": filterSummary,
			},
		}
	}

	rc.Stage = StageRoute
	matched, destURL, routeDiag := routing.Select(body, p.cfg.Routes)
	p.logger.Info(logging.CategoryRouting, "routing evaluated", map[string]interface{}{
		"request_id":    rc.RequestID,
		"field":         routeDiag.Field,
		"routing_value": routeDiag.RoutingValue,
		"rules_checked": routeDiag.RulesChecked,
	})
	if !matched {
		err := apperrors.RoutingError("no matching destination for routing value")
		p.logger.Warn(logging.CategoryRouting, err.Message, map[string]interface{}{"request_id": rc.RequestID})
		return Result{
			StatusCode: http.StatusNotFound,
			Body: errorBody{
				Error:     string(apperrors.ErrTypeRouting),
				Message:   err.Message,
				RequestID: rc.RequestID,
				RoutingContext: map[string]interface{}{
					"routing_value": routeDiag.RoutingValue,
					"rules_checked": routeDiag.RulesChecked,
				},
			},
		}
	}

	rc.Stage = StageForward
	reserialized, err := json.Marshal(body)
	if err != nil {
		return p.internalError(rc, err)
	}

	outcome := p.forwarder.Forward(ctx, destURL, reserialized, rc.RequestID, inboundHeaders, p.routeTimeout())
	p.logger.Info(logging.CategoryForwarding, "forward attempted", map[string]interface{}{
		"request_id":  rc.RequestID,
		"destination": destURL,
		"outcome":     outcome.Kind,
		"elapsed_ms":  outcome.Elapsed.Milliseconds(),
	})

	switch outcome.Kind {
	case forwarding.OutcomeConnectionError:
		msg := "could not establish a connection to the destination"
		p.logger.Error(logging.CategoryForwarding, msg, nil, map[string]interface{}{"request_id": rc.RequestID, "reason": outcome.Reason})
		return Result{
			StatusCode: http.StatusBadGateway,
			Body: errorBody{
				Error:     string(apperrors.ErrTypeForwarding),
				Message:   msg,
				RequestID: rc.RequestID,
				ForwardingContext: map[string]interface{}{
					"error_type": "CONNECTION_ERROR",
				},
			},
		}
	case forwarding.OutcomeTimeout:
		msg := "destination did not respond within the configured timeout"
		p.logger.Error(logging.CategoryForwarding, msg, nil, map[string]interface{}{"request_id": rc.RequestID, "reason": outcome.Reason})
		return Result{
			StatusCode: http.StatusGatewayTimeout,
			Body: errorBody{
				Error:     string(apperrors.ErrTypeForwarding),
				Message:   msg,
				RequestID: rc.RequestID,
				ForwardingContext: map[string]interface{}{
					"error_type": "TIMEOUT_ERROR",
				},
			},
		}
	default: // OutcomeOK
		p.logger.Info(logging.CategoryResponse, "request routed", map[string]interface{}{"request_id": rc.RequestID})
		return Result{
			StatusCode: http.StatusOK,
			Body: map[string]interface{}{
				"status":     "routed",
				"request_id": rc.RequestID,
				"routing_summary": map[string]interface{}{
					"field":         routeDiag.Field,
					"routing_value": routeDiag.RoutingValue,
				},
				"destination_response": map[string]interface{}{
					"status_code": outcome.StatusCode,
					"content":     outcome.Content,
				},
			},
		}
	}
}

func (p *Pipeline) validate(rc *RequestContext, rawBody []byte) (map[string]interface{}, *Result) {
	var generic interface{}
	if err := json.Unmarshal(rawBody, &generic); err != nil {
		err := apperrors.InvalidRequestError("body must be valid JSON")
		p.logger.Warn(logging.CategoryValidationError, err.Message, map[string]interface{}{"request_id": rc.RequestID})
		return nil, &Result{
			StatusCode: http.StatusBadRequest,
			Body:       errorBody{Error: string(apperrors.ErrTypeInvalidRequest), Message: err.Message, RequestID: rc.RequestID},
		}
	}

	body, ok := generic.(map[string]interface{})
	if !ok {
		err := apperrors.InvalidRequestError("Payload must be a JSON object")
		p.logger.Warn(logging.CategoryValidationError, err.Message, map[string]interface{}{"request_id": rc.RequestID})
		return nil, &Result{
			StatusCode: http.StatusBadRequest,
			Body:       errorBody{Error: string(apperrors.ErrTypeInvalidRequest), Message: err.Message, RequestID: rc.RequestID},
		}
	}

	return body, nil
}

func (p *Pipeline) internalError(rc *RequestContext, cause error) Result {
	err := apperrors.InternalError("unexpected failure while processing the request", cause)
	p.logger.Error(logging.CategoryResponse, err.Message, cause, map[string]interface{}{"request_id": rc.RequestID})
	return Result{
		StatusCode: http.StatusInternalServerError,
		Body:       errorBody{Error: string(apperrors.ErrTypeInternal), Message: err.Message, RequestID: rc.RequestID},
	}
}

func (p *Pipeline) routeTimeout() time.Duration {
	return time.Duration(p.cfg.General.RouteTimeout) * time.Second
}
