package sms

import (
	"fmt"
	"net/http"
	"net/url"
)

// Client talks to an HTTP SMS gateway that accepts form-encoded requests.
type Client struct {
	gatewayURL string
	apiKey     string
	sender     string
}

func NewClient(gatewayURL, apiKey, sender string) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		sender:     sender,
	}
}

func (c *Client) Send(to, text string) error {
	params := url.Values{}
	params.Add("api_key", c.apiKey)
	params.Add("from", c.sender)
	params.Add("to", to)
	params.Add("text", text)

	resp, err := http.PostForm(c.gatewayURL, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}

	return nil
}
