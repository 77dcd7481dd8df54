// Package gtasks is an HTTP adapter for a Google-Tasks-shaped REST
// provider. It implements service.Provider; the reconciler never sees
// HTTP details.
package gtasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/service"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tasks-provider",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Wire shapes follow the Google Tasks v1 resources.

type listEnvelope[T any] struct {
	Items []T `json:"items"`
}

type wireCollection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type wireItem struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status,omitempty"`
	Due      string `json:"due,omitempty"`
	Updated  string `json:"updated,omitempty"`
	Parent   string `json:"parent,omitempty"`
	Position string `json:"position,omitempty"`
}

func (c *Client) ListCollections(ctx context.Context) ([]service.Collection, error) {
	var env listEnvelope[wireCollection]
	if err := c.do(ctx, http.MethodGet, "/users/@me/lists", nil, &env); err != nil {
		return nil, err
	}
	out := make([]service.Collection, 0, len(env.Items))
	for _, w := range env.Items {
		out = append(out, service.Collection{ID: w.ID, Title: w.Title})
	}
	return out, nil
}

func (c *Client) ListItems(ctx context.Context, collectionID string) ([]service.Item, error) {
	var env listEnvelope[wireItem]
	path := fmt.Sprintf("/lists/%s/tasks", url.PathEscape(collectionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	out := make([]service.Item, 0, len(env.Items))
	for _, w := range env.Items {
		out = append(out, itemFromWire(w))
	}
	return out, nil
}

func (c *Client) CreateItem(ctx context.Context, collectionID string, item service.Item) (service.Item, error) {
	var created wireItem
	path := fmt.Sprintf("/lists/%s/tasks", url.PathEscape(collectionID))
	if err := c.do(ctx, http.MethodPost, path, wireFromItem(item), &created); err != nil {
		return service.Item{}, err
	}
	return itemFromWire(created), nil
}

func (c *Client) UpdateItem(ctx context.Context, collectionID, itemID string, item service.Item) (service.Item, error) {
	var updated wireItem
	path := fmt.Sprintf("/lists/%s/tasks/%s", url.PathEscape(collectionID), url.PathEscape(itemID))
	body := wireFromItem(item)
	body.ID = itemID
	if err := c.do(ctx, http.MethodPut, path, body, &updated); err != nil {
		return service.Item{}, err
	}
	return itemFromWire(updated), nil
}

func (c *Client) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	path := fmt.Sprintf("/lists/%s/tasks/%s", url.PathEscape(collectionID), url.PathEscape(itemID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// EnsureCollection returns the id of the named collection, creating it
// when the remote does not have one yet.
func (c *Client) EnsureCollection(ctx context.Context, title string) (string, error) {
	collections, err := c.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	for _, col := range collections {
		if col.Title == title {
			return col.ID, nil
		}
	}

	var created wireCollection
	if err := c.do(ctx, http.MethodPost, "/users/@me/lists", wireCollection{Title: title}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		if out == nil {
			return nil, nil
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func itemFromWire(w wireItem) service.Item {
	return service.Item{
		ID:       w.ID,
		Title:    w.Title,
		Notes:    w.Notes,
		Status:   w.Status,
		Due:      w.Due,
		Updated:  w.Updated,
		Parent:   w.Parent,
		Position: w.Position,
	}
}

func wireFromItem(item service.Item) wireItem {
	return wireItem{
		Title:  item.Title,
		Notes:  item.Notes,
		Status: item.Status,
		Due:    item.Due,
	}
}
