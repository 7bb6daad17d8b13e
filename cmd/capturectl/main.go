// Command capturectl is a small CLI client for the owner process's
// pull API (SPEC_FULL.md §6.5 POST /v1/external), shaped after the
// teacher's flag-driven single-purpose cmd/generate-models/main.go:
// parse flags, do one thing, print the result, exit.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/captured/llm-capture/internal/hub"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8787", "base URL of the captured owner process")
	method := flag.String("method", "", "health.ping | conversation.getLatest | conversation.getById")
	conversationID := flag.String("conversation-id", "", "conversation id (conversation.getById)")
	tabID := flag.Int("tab-id", 0, "tab id to scope conversation.getLatest to (0 = unscoped)")
	format := flag.String("format", "original", "original | common")
	flag.Parse()

	if *method == "" {
		fmt.Fprintln(os.Stderr, "Error: --method is required")
		os.Exit(1)
	}

	req := hub.ExternalRequest{
		Method:         hub.RequestMethod(*method),
		ConversationID: *conversationID,
		Format:         hub.ExportFormat(*format),
	}
	if *tabID != 0 {
		req.TabID = tabID
	}

	resp, err := call(*addr, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !resp.OK {
		os.Exit(1)
	}
}

func call(addr string, req hub.ExternalRequest) (*hub.ExternalResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	httpReq, err := http.NewRequest(http.MethodPost, addr+"/v1/external", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", httpResp.StatusCode, string(data))
	}

	var resp hub.ExternalResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
