package issuesheet

import (
	"errors"
	"fmt"
	"net/http"

	githook "github.com/go-playground/webhooks/v6/github"

	"github.com/coder/issuesheet/httpjson"
)

// webhook schedules the exports of the repository of an issues or
// pull_request event. The exports run after the response is sent.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) *httpjson.Response {
	var opts []githook.Option
	if s.WebhookSecret != "" {
		opts = append(opts, githook.Options.Secret(s.WebhookSecret))
	}
	hook, err := githook.New(opts...)
	if err != nil {
		return s.serverError(err)
	}

	payloadAny, err := hook.Parse(
		r, githook.IssuesEvent, githook.PullRequestEvent,
	)
	if err != nil {
		switch {
		case errors.Is(err, githook.ErrEventNotSpecifiedToParse):
			return httpjson.OK(httpjson.M{"msg": "ignoring event: not specified to parse"})
		case errors.Is(err, githook.ErrHMACVerificationFailed),
			errors.Is(err, githook.ErrMissingHubSignatureHeader):
			return httpjson.ErrorMessage(http.StatusUnauthorized, err)
		}
		return httpjson.ErrorMessage(http.StatusBadRequest, err)
	}

	var (
		repository string
		issueType  IssueType
	)
	switch payload := payloadAny.(type) {
	case githook.IssuesPayload:
		repository, issueType = payload.Repository.FullName, TypeIssue
	case githook.PullRequestPayload:
		repository, issueType = payload.Repository.FullName, TypePullRequest
	default:
		return s.serverError(fmt.Errorf("unexpected payload: %T", payloadAny))
	}

	if repository == "" {
		return httpjson.Errorf(http.StatusBadRequest, "payload has no repository")
	}

	var jobs []Job
	for _, job := range s.Jobs.ForRepository(repository) {
		if job.Wants(issueType) {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return httpjson.OK(httpjson.M{"message": "no export configured", "repository": repository})
	}

	s.logger().Info("webhook scheduled exports",
		"repository", repository,
		"type", issueType,
		"jobs", len(jobs),
	)
	s.runInBackground(r.Context(), jobs)

	return &httpjson.Response{
		Status: http.StatusAccepted,
		Body:   httpjson.M{"message": "export scheduled", "jobs": len(jobs)},
	}
}
