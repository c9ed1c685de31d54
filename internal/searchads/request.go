package searchads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"searchads-client/internal/query"
	"searchads-client/internal/queue"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const report_request = "request"

// Result is the raw json body returned by the api.
type Result json.RawMessage

// Data returns the `data` member of the body, responses follow a
// `{ "data": ... }` convention.
func (r Result) Data() (json.RawMessage, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	err := json.Unmarshal(r, &envelope)
	if err != nil {
		return nil, fmt.Errorf("searchads: decode result: %w", err)
	}
	return envelope.Data, nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

// Request queues the query, it runs once the client is logged in.
func (c *Client) Request(q query.Query) *queue.Future[Result] {
	return c.queue.Submit(func(ctx context.Context) (Result, error) {
		return c.execute(ctx, q)
	})
}

// Do queues the query and waits for its result. Giving up on ctx does not
// remove the query from the queue.
func (c *Client) Do(ctx context.Context, q query.Query) (Result, error) {
	res, err := c.Request(q).Wait(ctx)
	if errors.Is(err, queue.ErrClosed) {
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return res, err
}

// RequestFunc queues the query and calls cb exactly once with its outcome.
func (c *Client) RequestFunc(q query.Query, cb func(Result, error)) {
	c.Request(q).Then(cb)
}

func (c *Client) execute(ctx context.Context, q query.Query) (Result, error) {
	q = q.WithAPIURL(c.opts.APIURL)

	ctx, span := tracer.Start(ctx, "execute", trace.WithAttributes(
		attribute.String("query_type", string(q.Type())),
		attribute.String("endpoint", q.Endpoint()),
	))
	defer span.End()

	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
	}

	res, err := c.api.R().
		SetContext(ctx).
		SetHeaders(apiHeaders(c.session.Snapshot())).
		SetBody(q.Body()).
		Post(q.URL())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	c.session.Rotate(res.Cookies())

	if !res.IsSuccess() {
		err := newResponseError(ErrRequestFailed, res)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportWarning(report_request, q.Endpoint(), err)
		return nil, err
	}
	return Result(res.Body()), nil
}
