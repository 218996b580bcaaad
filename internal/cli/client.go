package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// SubmitFile uploads filePath to the server as a File-module job at the
// given priority, returning the assigned job UID.
func SubmitFile(filePath string, priority int) (string, error) {
	cfg := GetConfig()
	if cfg.ServerURL == "" {
		return "", fmt.Errorf("server URL not configured. Please run 'tsapictl login'")
	}
	if cfg.Token == "" {
		return "", fmt.Errorf("not logged in (token missing). Please run 'tsapictl login'")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.WriteField("title", filepath.Base(filePath)); err != nil {
		return "", fmt.Errorf("failed to write title field: %w", err)
	}
	if err := writer.WriteField("priority", strconv.Itoa(priority)); err != nil {
		return "", fmt.Errorf("failed to write priority field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, cfg.ServerURL+"/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("submit failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return decoded.JobID, nil
}

// JobStatus fetches the current status of a job by UID.
func JobStatus(jobID string) (string, error) {
	cfg := GetConfig()
	if cfg.ServerURL == "" {
		return "", fmt.Errorf("server URL not configured. Please run 'tsapictl login'")
	}

	req, err := http.NewRequest(http.MethodGet, cfg.ServerURL+"/status?id="+url.QueryEscape(jobID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status lookup failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return decoded.Status, nil
}

// DeleteJob cancels and removes a job by UID.
func DeleteJob(jobID string) error {
	cfg := GetConfig()
	if cfg.ServerURL == "" {
		return fmt.Errorf("server URL not configured. Please run 'tsapictl login'")
	}

	req, err := http.NewRequest(http.MethodDelete, cfg.ServerURL+"/transcribe?id="+url.QueryEscape(jobID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
