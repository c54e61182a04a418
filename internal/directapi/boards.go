package directapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/parser"
)

const ashbyBoardQuery = `query ApiJobBoardWithTeams($organizationHostedJobsPageName: String!) {
  jobBoard: jobBoardWithTeams(organizationHostedJobsPageName: $organizationHostedJobsPageName) {
    jobPostings { id title locationName employmentType }
  }
}`

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type ashbyBoardResponse struct {
	Data struct {
		JobBoard *struct {
			JobPostings []parser.AshbyPosting `json:"jobPostings"`
		} `json:"jobBoard"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// listAshby queries the public non-user GraphQL endpoint the Ashby board UI uses.
func (c *Client) listAshby(ctx context.Context, slug string) ([]listing, error) {
	body, err := json.Marshal(graphQLRequest{
		OperationName: "ApiJobBoardWithTeams",
		Variables:     map[string]any{"organizationHostedJobsPageName": slug},
		Query:         ashbyBoardQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("encode ashby query: %w", err)
	}
	target := strings.TrimRight(c.endpoints.Ashby, "/") + "/api/non-user-graphql?op=ApiJobBoardWithTeams"

	var resp ashbyBoardResponse
	if err := c.doJSON(ctx, http.MethodPost, target, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("ashby graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.JobBoard == nil {
		return nil, errors.New("ashby board not found")
	}

	out := make([]listing, 0, len(resp.Data.JobBoard.JobPostings))
	for _, p := range resp.Data.JobBoard.JobPostings {
		if p.ID == "" {
			continue
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode ashby posting %s: %w", p.ID, err)
		}
		out = append(out, listing{
			Title:   p.Title,
			URL:     "https://jobs.ashbyhq.com/" + url.PathEscape(slug) + "/" + url.PathEscape(p.ID),
			Payload: payload,
		})
	}
	return out, nil
}

type leverPosting struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	HostedURL string `json:"hostedUrl"`
}

func (c *Client) listLever(ctx context.Context, slug string) ([]listing, error) {
	target := fmt.Sprintf("%s/v0/postings/%s?mode=json", strings.TrimRight(c.endpoints.Lever, "/"), url.PathEscape(slug))
	var postings []leverPosting
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &postings); err != nil {
		return nil, err
	}
	out := make([]listing, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" {
			continue
		}
		link := p.HostedURL
		if link == "" {
			link = "https://jobs.lever.co/" + url.PathEscape(slug) + "/" + url.PathEscape(p.ID)
		}
		out = append(out, listing{Title: p.Text, URL: link})
	}
	return out, nil
}

type greenhouseBoard struct {
	Jobs []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"jobs"`
}

// listGreenhouse always builds the hosted board URL; absolute_url often points
// at the company's own careers page, which no parser understands.
func (c *Client) listGreenhouse(ctx context.Context, slug string) ([]listing, error) {
	target := fmt.Sprintf("%s/v1/boards/%s/jobs", strings.TrimRight(c.endpoints.Greenhouse, "/"), url.PathEscape(slug))
	var board greenhouseBoard
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &board); err != nil {
		return nil, err
	}
	out := make([]listing, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		if j.ID == 0 {
			continue
		}
		out = append(out, listing{
			Title: j.Title,
			URL:   "https://boards.greenhouse.io/" + url.PathEscape(slug) + "/jobs/" + strconv.FormatInt(j.ID, 10),
		})
	}
	return out, nil
}

type smartRecruitersPage struct {
	Content []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content"`
	TotalFound int `json:"totalFound"`
}

const (
	smartRecruitersPageSize = 100
	smartRecruitersMaxPages = 10
)

func (c *Client) listSmartRecruiters(ctx context.Context, slug string) ([]listing, error) {
	base := fmt.Sprintf("%s/v1/companies/%s/postings", strings.TrimRight(c.endpoints.SmartRecruiters, "/"), url.PathEscape(slug))
	var out []listing
	for page := 0; page < smartRecruitersMaxPages; page++ {
		offset := page * smartRecruitersPageSize
		target := fmt.Sprintf("%s?limit=%d&offset=%d", base, smartRecruitersPageSize, offset)
		var resp smartRecruitersPage
		if err := c.doJSON(ctx, http.MethodGet, target, nil, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Content {
			if p.ID == "" {
				continue
			}
			out = append(out, listing{
				Title: p.Name,
				URL:   "https://jobs.smartrecruiters.com/" + url.PathEscape(slug) + "/" + url.PathEscape(p.ID),
			})
		}
		if len(resp.Content) < smartRecruitersPageSize || offset+len(resp.Content) >= resp.TotalFound {
			break
		}
	}
	return out, nil
}
