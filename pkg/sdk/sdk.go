package sdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/beanbocchi/cumulus/pkg/response"
)

const passwordHeader = "X-Collection-Password"

func (c *Client) doGET(rawURL string, query url.Values, out any) error {
	httpReq, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(query) > 0 {
		httpReq.URL.RawQuery = query.Encode()
	}
	return c.doRequest(httpReq, out)
}

func (c *Client) doPOST(rawURL string, query url.Values, body io.Reader, out any) error {
	httpReq, err := http.NewRequest(http.MethodPost, rawURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(query) > 0 {
		httpReq.URL.RawQuery = query.Encode()
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}
	return c.doRequest(httpReq, out)
}

func (c *Client) doRequest(req *http.Request, out any) error {
	if c.password != "" {
		req.Header.Set(passwordHeader, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var commonResp response.CommonResponse
	if err := json.NewDecoder(resp.Body).Decode(&commonResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && commonResp.Error == nil {
		return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}
	if commonResp.Error != nil {
		return commonResp.Error
	}

	if out == nil {
		return nil
	}
	dataBytes, err := json.Marshal(commonResp.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	if err := json.Unmarshal(dataBytes, out); err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}
	return nil
}

// decodeFailure shapes a non-2xx retrieval response into an error. The
// body may carry a structured error document or nothing at all.
func decodeFailure(resp *http.Response) error {
	var commonResp response.CommonResponse
	if err := json.NewDecoder(resp.Body).Decode(&commonResp); err == nil && commonResp.Error != nil {
		return commonResp.Error
	}
	return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
}
