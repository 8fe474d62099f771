package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tokensyndicate/crypto"
)

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

var apiCall = callAPI

var httpClient = &http.Client{Timeout: 30 * time.Second}

func baseURL() string {
	if raw := strings.TrimSpace(os.Getenv("SYNDICATE_API")); raw != "" {
		return strings.TrimRight(raw, "/")
	}
	return "http://localhost:7090"
}

func callAPI(method, path string, body interface{}, requireAuth bool) (json.RawMessage, *apiError, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		token := strings.TrimSpace(os.Getenv("SYNDICATE_TOKEN"))
		if token == "" {
			return nil, nil, errors.New("SYNDICATE_TOKEN must be set for this command")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr, nil
	}
	return json.RawMessage(raw), nil, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage())
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleAPIError(w io.Writer, err *apiError) int {
	if err == nil {
		return 0
	}
	if err.Code != "" {
		fmt.Fprintf(w, "API error %d (%s): %s\n", err.Status, err.Code, err.Message)
	} else {
		fmt.Fprintf(w, "API error %d: %s\n", err.Status, err.Message)
	}
	return 1
}

func handleCallError(w io.Writer, err error) int {
	fmt.Fprintf(w, "API call failed: %v\n", err)
	return 1
}

func writeResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if _, err := w.Write(result); err == nil && result[len(result)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

func dispatch(stdout, stderr io.Writer, method, path string, body interface{}, requireAuth bool) int {
	result, apiErr, err := apiCall(method, path, body, requireAuth)
	if err != nil {
		return handleCallError(stderr, err)
	}
	if apiErr != nil {
		return handleAPIError(stderr, apiErr)
	}
	writeResult(stdout, result)
	return 0
}

func validateAddress(flagName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", flagName)
	}
	if _, err := crypto.ParseAddress(value); err != nil {
		return fmt.Errorf("%s: %v", flagName, err)
	}
	return nil
}

// normalizeAmount accepts plain integers and the 100e18 shorthand.
func normalizeAmount(value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("--amount is required")
	}
	base, exponent := trimmed, 0
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		parsed, err := strconv.ParseUint(trimmed[idx+1:], 10, 16)
		if err != nil {
			return "", fmt.Errorf("invalid scientific notation in --amount")
		}
		exponent = int(parsed)
	}
	base = strings.TrimPrefix(base, "+")
	if base == "" || strings.Trim(base, "0123456789") != "" {
		return "", fmt.Errorf("--amount must be a positive integer")
	}
	digits := strings.TrimLeft(base, "0")
	if digits == "" {
		return "", fmt.Errorf("--amount must be positive")
	}
	return digits + strings.Repeat("0", exponent), nil
}

func runCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create", stderr)
	var (
		creator    string
		token      string
		rate       uint64
		bountyRate uint
		capacity   string
		refundFrom uint64
	)
	fs.StringVar(&creator, "creator", "", "creator address")
	fs.StringVar(&token, "token", "", "presale token contract address")
	fs.Uint64Var(&rate, "exchange-rate", 0, "wei per token unit")
	fs.UintVar(&bountyRate, "bounty-rate", 0, "bounty per thousand, in (0, 1000)")
	fs.StringVar(&capacity, "capacity", "", "maximum pool capacity in wei")
	fs.Uint64Var(&refundFrom, "refund-from", 0, "height from which refunds are allowed")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--creator", creator); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("--token", token); err != nil {
		return printError(stderr, err.Error())
	}
	if rate == 0 {
		return printError(stderr, "--exchange-rate must be positive")
	}
	if bountyRate == 0 || bountyRate >= 1000 {
		return printError(stderr, "--bounty-rate must be within (0, 1000)")
	}
	normalized, err := normalizeAmount(capacity)
	if err != nil {
		return printError(stderr, strings.ReplaceAll(err.Error(), "--amount", "--capacity"))
	}
	body := map[string]interface{}{
		"creator":               creator,
		"token":                 token,
		"exchangeRate":          rate,
		"bountyRatePerThousand": bountyRate,
		"maxPoolCapacity":       normalized,
		"refundEligibleFrom":    refundFrom,
	}
	return dispatch(stdout, stderr, http.MethodPost, "/v1/syndicates", body, true)
}

func runGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("get", stderr)
	var id string
	fs.StringVar(&id, "id", "", "syndicate address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	return dispatch(stdout, stderr, http.MethodGet, "/v1/syndicates/"+url.PathEscape(id), nil, false)
}

func runList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("list", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return dispatch(stdout, stderr, http.MethodGet, "/v1/syndicates", nil, false)
}

func runDepositors(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("depositors", stderr)
	var id, addr string
	fs.StringVar(&id, "id", "", "syndicate address")
	fs.StringVar(&addr, "address", "", "optional depositor address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	path := "/v1/syndicates/" + url.PathEscape(id) + "/depositors"
	if strings.TrimSpace(addr) != "" {
		if err := validateAddress("--address", addr); err != nil {
			return printError(stderr, err.Error())
		}
		path += "/" + url.PathEscape(addr)
	}
	return dispatch(stdout, stderr, http.MethodGet, path, nil, false)
}

func runContribution(action string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(action, stderr)
	var (
		id         string
		from       string
		amount     string
		bountyRate uint
	)
	fs.StringVar(&id, "id", "", "syndicate address")
	fs.StringVar(&from, "from", "", "depositor address")
	fs.StringVar(&amount, "amount", "", "amount in wei (supports 100e18 shorthand)")
	if action == "deposit" {
		fs.UintVar(&bountyRate, "bounty-rate", 0, "optional bounty per thousand, at least the configured rate")
	}
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("--from", from); err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if bountyRate >= 1000 {
		return printError(stderr, "--bounty-rate must be below 1000")
	}
	body := map[string]interface{}{"depositor": from, "amount": normalized}
	if bountyRate > 0 {
		body["bountyRatePerThousand"] = bountyRate
	}
	return dispatch(stdout, stderr, http.MethodPost, "/v1/syndicates/"+url.PathEscape(id)+"/"+action, body, true)
}

func runCallerAction(action string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(action, stderr)
	var id, caller string
	fs.StringVar(&id, "id", "", "syndicate address")
	fs.StringVar(&caller, "caller", "", "calling address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("--caller", caller); err != nil {
		return printError(stderr, err.Error())
	}
	body := map[string]interface{}{"caller": caller}
	return dispatch(stdout, stderr, http.MethodPost, "/v1/syndicates/"+url.PathEscape(id)+"/"+action, body, true)
}

func runSettlement(action string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(action, stderr)
	var id, from, to string
	fs.StringVar(&id, "id", "", "syndicate address")
	fs.StringVar(&from, "from", "", "depositor address")
	if action == "withdraw-tokens" {
		fs.StringVar(&to, "to", "", "optional recipient address")
	}
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("--from", from); err != nil {
		return printError(stderr, err.Error())
	}
	body := map[string]interface{}{"depositor": from}
	if strings.TrimSpace(to) != "" {
		if err := validateAddress("--to", to); err != nil {
			return printError(stderr, err.Error())
		}
		body["recipient"] = to
	}
	return dispatch(stdout, stderr, http.MethodPost, "/v1/syndicates/"+url.PathEscape(id)+"/"+action, body, true)
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	var (
		eventType string
		limit     int
	)
	fs.StringVar(&eventType, "type", "", "event type prefix, e.g. syndicate.deposit")
	fs.IntVar(&limit, "limit", 50, "maximum number of events")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if limit < 0 {
		return printError(stderr, "--limit must not be negative")
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if strings.TrimSpace(eventType) != "" {
		query.Set("type", strings.TrimSpace(eventType))
	}
	return dispatch(stdout, stderr, http.MethodGet, "/v1/events?"+query.Encode(), nil, false)
}

func runPause(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pause", stderr)
	var state string
	fs.StringVar(&state, "set", "", "on or off; omit to show the current state")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "":
		return dispatch(stdout, stderr, http.MethodGet, "/v1/admin/pause", nil, true)
	case "on":
		return dispatch(stdout, stderr, http.MethodPost, "/v1/admin/pause", map[string]interface{}{"paused": true}, true)
	case "off":
		return dispatch(stdout, stderr, http.MethodPost, "/v1/admin/pause", map[string]interface{}{"paused": false}, true)
	default:
		return printError(stderr, "--set must be on or off")
	}
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	out, _ := json.Marshal(map[string]string{
		"address":    key.PubKey().Address().String(),
		"privateKey": hex.EncodeToString(key.Bytes()),
	})
	writeResult(stdout, out)
	return 0
}
