// Package expression drives a remote batch facial-expression job: submit the
// clip videos, poll the job with capped exponential backoff until it reaches a
// terminal status or the wait times out, then fetch the predictions.
package expression

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/interview-coach/assess-pipeline/errs"
)

// DefaultTimeout bounds the whole poll loop.
const DefaultTimeout = 120 * time.Second

// Service is the batch inference API.
type Service interface {
	Submit(ctx context.Context, files []string, cfg Config) (string, error)
	State(ctx context.Context, jobID string) (*JobState, error)
	Predictions(ctx context.Context, jobID string) ([]Prediction, error)
}

type Client struct {
	svc     Service
	clock   Clock
	backoff Backoff
	timeout time.Duration
	config  Config
}

type Option func(*Client)

func WithClock(c Clock) Option { return func(cl *Client) { cl.clock = c } }

func WithBackoff(b Backoff) Option { return func(cl *Client) { cl.backoff = b } }

func WithTimeout(d time.Duration) Option { return func(cl *Client) { cl.timeout = d } }

func NewClient(svc Service, opts ...Option) *Client {
	c := &Client{
		svc:     svc,
		clock:   realClock{},
		backoff: DefaultBackoff(),
		timeout: DefaultTimeout,
		config:  Config{FACS: true},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit starts one batch job over files and returns its id.
func (c *Client) Submit(ctx context.Context, files []string) (string, error) {
	if len(files) == 0 {
		return "", errs.Errorf(errs.KindInput, "expression.submit", "no clip files to submit")
	}
	id, err := c.svc.Submit(ctx, files, c.config)
	if err != nil {
		return "", errs.E(errs.KindSubmission, "expression.submit", err)
	}
	if id == "" {
		return "", errs.Errorf(errs.KindSubmission, "expression.submit", "service returned an empty job id")
	}
	log.WithFields(log.Fields{"job": id, "files": len(files)}).Info("expression job submitted")
	return id, nil
}

// Poll waits for jobID to reach COMPLETED or FAILED. The wait gives up after
// the client timeout with a PollTimeoutError; the remote job keeps running.
func (c *Client) Poll(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{ID: jobID}
	deadline := c.clock.Now().Add(c.timeout)

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	delay := c.backoff.Initial
	for {
		remaining := deadline.Sub(c.clock.Now())
		if delay >= remaining {
			if remaining > 0 {
				if err := c.clock.Sleep(waitCtx, remaining); err != nil {
					return job, c.interrupted(ctx, job, err)
				}
			}
			return job, c.timedOut(job)
		}
		if err := c.clock.Sleep(waitCtx, delay); err != nil {
			return job, c.interrupted(ctx, job, err)
		}

		state, err := c.svc.State(waitCtx, jobID)
		job.Polls++
		switch {
		case err != nil && waitCtx.Err() != nil:
			return job, c.interrupted(ctx, job, waitCtx.Err())
		case err != nil:
			log.WithError(err).WithField("job", jobID).Warn("job status poll failed, retrying")
		default:
			c.observe(job, state)
		}

		switch job.Status {
		case StatusCompleted:
			log.WithFields(log.Fields{
				"job":         jobID,
				"created":     job.CreatedAt,
				"started":     job.StartedAt,
				"ended":       job.EndedAt,
				"errors":      job.NumErrors,
				"predictions": job.NumPredictions,
			}).Info("expression job completed")
			return job, nil
		case StatusFailed:
			log.WithFields(log.Fields{"job": jobID, "message": job.Message}).Error("expression job failed")
			return job, errs.Errorf(errs.KindJobFailed, "expression.poll", "job %s: %s", jobID, job.Message)
		}

		delay = c.backoff.Next(delay)
		log.WithFields(log.Fields{"job": jobID, "status": job.Status, "next": delay}).Debug("job not finished")
	}
}

// observe applies a status report. Statuses only move forward; a report that
// would move the job backwards is ignored.
func (c *Client) observe(job *Job, s *JobState) {
	if s.Status.rank() == 0 {
		log.WithFields(log.Fields{"job": job.ID, "status": s.Status}).Warn("unknown job status")
		return
	}
	if s.Status.rank() < job.Status.rank() {
		log.WithFields(log.Fields{"job": job.ID, "from": job.Status, "to": s.Status}).Warn("ignoring backwards status")
		return
	}
	if s.Status != job.Status {
		job.Transitions = append(job.Transitions, Transition{From: job.Status, To: s.Status, At: c.clock.Now()})
		log.WithFields(log.Fields{"job": job.ID, "status": s.Status}).Info("status changed")
	}
	job.Status = s.Status
	job.Message = s.Message
	job.CreatedAt = s.CreatedAt
	job.StartedAt = s.StartedAt
	job.EndedAt = s.EndedAt
	job.NumErrors = s.NumErrors
	job.NumPredictions = s.NumPredictions
}

func (c *Client) timedOut(job *Job) error {
	log.WithFields(log.Fields{"job": job.ID, "status": job.Status, "timeout": c.timeout}).Warn("polling timed out")
	return errs.Errorf(errs.KindPollTimeout, "expression.poll",
		"job %s still %q after %s", job.ID, job.Status, c.timeout)
}

// interrupted maps a wait that ended early: the client's own deadline is a
// timeout, a cancelled caller context is returned as is.
func (c *Client) interrupted(parent context.Context, job *Job, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return c.timedOut(job)
	}
	return fmt.Errorf("poll job %s: %w", job.ID, err)
}

type PollResult struct {
	Job *Job
	Err error
}

// PollAsync runs Poll in the background and delivers exactly one result.
func (c *Client) PollAsync(ctx context.Context, jobID string) <-chan PollResult {
	ch := make(chan PollResult, 1)
	go func() {
		job, err := c.Poll(ctx, jobID)
		ch <- PollResult{Job: job, Err: err}
	}()
	return ch
}

// FetchPredictions reads the results of a completed job.
func (c *Client) FetchPredictions(ctx context.Context, jobID string) ([]Prediction, error) {
	preds, err := c.svc.Predictions(ctx, jobID)
	if err != nil {
		return nil, errs.E(errs.KindFetch, "expression.fetch", err)
	}
	log.WithFields(log.Fields{"job": jobID, "files": len(preds)}).Debug("predictions fetched")
	return preds, nil
}

// Run submits files, waits for the job and returns its predictions.
func (c *Client) Run(ctx context.Context, files []string) (*Job, []Prediction, error) {
	id, err := c.Submit(ctx, files)
	if err != nil {
		return nil, nil, err
	}
	res := <-c.PollAsync(ctx, id)
	if res.Err != nil {
		return res.Job, nil, res.Err
	}
	preds, err := c.FetchPredictions(ctx, id)
	if err != nil {
		return res.Job, nil, err
	}
	return res.Job, preds, nil
}
