// Package main implements a small CLI client that drives the VoiceGate
// enrollment and verification flows over HTTP.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/voicegate/voicegate/internal/models"
)

const (
	apiEnroll = "/api/enroll"
	apiVerify = "/api/verify"
)

var (
	version   string
	buildDate string
)

// postJSON sends a JSON request and decodes the JSON response into out.
// Non-2xx responses are returned as errors carrying the response body.
func postJSON(client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s: %s", url, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// submitAudio posts one audio file against a challenge.
func submitAudio(client *http.Client, url string, challenge models.Challenge, path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	req := map[string]string{
		"challenge_id": challenge.ID,
		"audio":        base64.StdEncoding.EncodeToString(audio),
	}
	return postJSON(client, url, req, nil)
}

// enroll runs the full enrollment flow: start, one sample per challenge,
// complete.
func enroll(client *http.Client, baseURL, user, difficulty string, overwrite bool, files []string) error {
	var sess models.EnrollmentSession
	err := postJSON(client, baseURL+apiEnroll, map[string]any{
		"user_id":    user,
		"difficulty": difficulty,
		"overwrite":  overwrite,
	}, &sess)
	if err != nil {
		return err
	}

	if len(files) < len(sess.Challenges) {
		return fmt.Errorf("session issued %d challenges but only %d audio files were given",
			len(sess.Challenges), len(files))
	}

	for i, ch := range sess.Challenges {
		fmt.Printf("challenge %d: %q\n", ch.Order, ch.Text)
		if err := submitAudio(client, fmt.Sprintf("%s%s/%s/sample", baseURL, apiEnroll, sess.ID), ch, files[i]); err != nil {
			return err
		}
	}

	var done struct {
		QualityScore float64 `json:"quality_score"`
	}
	if err := postJSON(client, fmt.Sprintf("%s%s/%s/complete", baseURL, apiEnroll, sess.ID), map[string]string{}, &done); err != nil {
		return err
	}
	fmt.Printf("enrolled %s, quality score %.4f\n", user, done.QualityScore)
	return nil
}

// verify runs the full verification flow: start, one sample per challenge,
// decision.
func verify(client *http.Client, baseURL, user, difficulty string, files []string) error {
	var sess models.VerificationSession
	err := postJSON(client, baseURL+apiVerify, map[string]string{
		"user_id":    user,
		"difficulty": difficulty,
	}, &sess)
	if err != nil {
		return err
	}

	if len(files) < len(sess.Challenges) {
		return fmt.Errorf("session issued %d challenges but only %d audio files were given",
			len(sess.Challenges), len(files))
	}

	for i, ch := range sess.Challenges {
		fmt.Printf("challenge %d: %q\n", ch.Order, ch.Text)
		if err := submitAudio(client, fmt.Sprintf("%s%s/%s/challenge", baseURL, apiVerify, sess.ID), ch, files[i]); err != nil {
			return err
		}
	}

	resp, err := client.Get(fmt.Sprintf("%s%s/%s/decision", baseURL, apiVerify, sess.ID))
	if err != nil {
		return fmt.Errorf("get decision: %w", err)
	}
	defer resp.Body.Close()
	var decision struct {
		Decision models.SessionState      `json:"decision"`
		Results  []models.ChallengeResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return fmt.Errorf("decode decision: %w", err)
	}

	fmt.Printf("decision: %s\n", decision.Decision)
	for _, r := range decision.Results {
		fmt.Printf("  challenge %s: accepted=%t stage=%d\n", r.ChallengeID, r.Result.Accepted, r.Result.RejectionStage)
	}
	return nil
}

// main parses command-line flags and dispatches to the enroll or verify
// commands. Remaining arguments are audio files, one per challenge.
func main() {
	var (
		cmd        string
		baseURL    string
		user       string
		difficulty string
		overwrite  bool
		showVer    bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: enroll | verify")
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&user, "user", "", "user id")
	flag.StringVar(&difficulty, "difficulty", "medium", "phrase difficulty: easy | medium | hard")
	flag.BoolVar(&overwrite, "overwrite", false, "replace an existing voice signature")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("VoiceGate Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}
	if user == "" {
		log.Fatal("please provide -user=<id>")
	}

	client := &http.Client{Timeout: 2 * time.Minute}

	switch cmd {
	case "enroll":
		if err := enroll(client, baseURL, user, difficulty, overwrite, flag.Args()); err != nil {
			log.Fatal(err)
		}
	case "verify":
		if err := verify(client, baseURL, user, difficulty, flag.Args()); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}
