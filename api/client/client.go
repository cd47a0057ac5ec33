package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/aouyang1/pckiosk/api/models"
)

// StatusError is returned when the backend answers with an unexpected status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.Code)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// BackendClient talks to the monitored PC: the Flask backend for stats,
// slideshow media and Spotify, and the macro server for macros and audio.
type BackendClient struct {
	baseURL  string
	macroURL string
	client   *http.Client
	// media retries transient failures; probes never go through it so each
	// failed probe is counted
	media *http.Client
}

func NewBackendClient(baseURL, macroURL string) *BackendClient {
	return &BackendClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		macroURL: strings.TrimSuffix(macroURL, "/"),
		client:   &http.Client{},
		media:    newRetryableClient(2, 200*time.Millisecond, 2*time.Second).StandardClient(),
	}
}

func newRetryableClient(retryMax int, retryWaitMin, retryWaitMax time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = nil
	// hand the last response back so callers still see the backend's status
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// Stats fetches the hardware monitor summary. A 200 is required; the
// caller decides whether the payload is complete.
func (bc *BackendClient) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := bc.doJSON(ctx, http.MethodGet, bc.baseURL+"/monitoring/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Ping asks the backend whether it can reach the monitored PC.
func (bc *BackendClient) Ping(ctx context.Context) (*models.PingResponse, error) {
	var ping models.PingResponse
	if err := bc.doJSON(ctx, http.MethodGet, bc.baseURL+"/monitoring/ping", nil, &ping); err != nil {
		return nil, err
	}
	return &ping, nil
}

// Wake asks the backend to send a wake-on-lan packet to the PC.
func (bc *BackendClient) Wake(ctx context.Context) error {
	return bc.doJSON(ctx, http.MethodPost, bc.baseURL+"/monitoring/wake", nil, nil)
}

// ListMedia returns the file names available to the slideshow.
func (bc *BackendClient) ListMedia(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bc.baseURL+"/slideshow/media", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	var names []string
	if err := bc.do(bc.media, req, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// MediaURL is where the backend serves a slideshow file.
func (bc *BackendClient) MediaURL(name string) string {
	return fmt.Sprintf("%s/slideshow/uploads/%s", bc.baseURL, url.PathEscape(name))
}

// FetchMedia streams a slideshow file into w.
func (bc *BackendClient) FetchMedia(ctx context.Context, name string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bc.MediaURL(name), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := bc.media.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read media %s: %w", name, err)
	}
	return nil
}

// UploadMedia forwards a file to the backend's slideshow upload endpoint.
func (bc *BackendClient) UploadMedia(ctx context.Context, name string, r io.Reader) (*models.UploadResponse, error) {
	var uploadResp models.UploadResponse
	if err := bc.postFile(ctx, bc.baseURL+"/slideshow/upload", "file", name, r, &uploadResp); err != nil {
		return nil, err
	}

	slog.Info("media uploaded to backend", "name", name)
	return &uploadResp, nil
}

// RawStats returns the hardware monitor payload as the backend sent it.
func (bc *BackendClient) RawStats(ctx context.Context) (json.RawMessage, error) {
	return bc.rawJSON(ctx, http.MethodGet, bc.baseURL+"/monitoring/stats")
}

// Macros returns the macro grid configured on the macro server.
func (bc *BackendClient) Macros(ctx context.Context) (*models.MacroConfig, error) {
	var cfg models.MacroConfig
	if err := bc.doJSON(ctx, http.MethodGet, bc.macroURL+"/macros", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveMacro creates or replaces the macro at m.Position.
func (bc *BackendClient) SaveMacro(ctx context.Context, m models.Macro) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/macros", m, nil)
}

func (bc *BackendClient) DeleteMacro(ctx context.Context, position int) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/delete_macro", models.DeleteMacroRequest{Position: position}, nil)
}

func (bc *BackendClient) SwapMacros(ctx context.Context, from, to int) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/swap_macros", models.SwapMacrosRequest{From: from, To: to}, nil)
}

func (bc *BackendClient) ResizeGrid(ctx context.Context, grid models.MacroGrid) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/resize_grid", grid, nil)
}

// UploadMacroIcon stores an icon on the macro server and returns the path
// macros refer to it by.
func (bc *BackendClient) UploadMacroIcon(ctx context.Context, name string, r io.Reader) (string, error) {
	var resp models.MacroIconResponse
	if err := bc.postFile(ctx, bc.macroURL+"/upload_macro_icon", "icon", name, r, &resp); err != nil {
		return "", err
	}
	if resp.IconPath == "" {
		return "", errors.New("macro server returned no icon path")
	}
	return resp.IconPath, nil
}

func (bc *BackendClient) OpenApp(ctx context.Context, appPath string) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/open_app", models.OpenAppRequest{AppPath: appPath}, nil)
}

func (bc *BackendClient) SwitchAccount(ctx context.Context, steamID string) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/switch_account", models.SwitchAccountRequest{SteamID: steamID}, nil)
}

// AudioSessions lists the audio sessions with their icons and volumes.
func (bc *BackendClient) AudioSessions(ctx context.Context) ([]models.AudioSession, error) {
	var sessions []models.AudioSession
	if err := bc.doJSON(ctx, http.MethodGet, bc.macroURL+"/audio_sessions_metadata", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// AudioVolumes is the cheap poll of session volumes, without icons.
func (bc *BackendClient) AudioVolumes(ctx context.Context) ([]models.AudioVolume, error) {
	var volumes []models.AudioVolume
	if err := bc.doJSON(ctx, http.MethodGet, bc.macroURL+"/audio_sessions_volume", nil, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

func (bc *BackendClient) SetAppVolume(ctx context.Context, appName string, volume int) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/set_app_volume", models.SetVolumeRequest{AppName: appName, Volume: volume}, nil)
}

func (bc *BackendClient) AudioOutputDevices(ctx context.Context) ([]models.AudioOutputDevice, error) {
	var devices []models.AudioOutputDevice
	if err := bc.doJSON(ctx, http.MethodGet, bc.macroURL+"/audio_output_devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (bc *BackendClient) SetAudioOutputDevice(ctx context.Context, deviceID string) error {
	return bc.doJSON(ctx, http.MethodPost, bc.macroURL+"/set_audio_output_device", models.SetOutputDeviceRequest{DeviceID: deviceID}, nil)
}

// spotifyPaths maps kiosk command names onto backend routes that differ.
var spotifyPaths = map[string]string{
	"prev": "previous",
}

// SpotifyCommand sends a transport command (play, pause, next, prev) and
// returns the backend's JSON answer untouched.
func (bc *BackendClient) SpotifyCommand(ctx context.Context, command string) (json.RawMessage, error) {
	path := command
	if p, ok := spotifyPaths[command]; ok {
		path = p
	}
	return bc.rawJSON(ctx, http.MethodPost, fmt.Sprintf("%s/spotify/%s", bc.baseURL, url.PathEscape(path)))
}

// CurrentSong returns the backend's currently-playing payload, or nil when
// nothing is playing.
func (bc *BackendClient) CurrentSong(ctx context.Context) (json.RawMessage, error) {
	raw, err := bc.rawJSON(ctx, http.MethodGet, bc.baseURL+"/spotify/current-song")
	if IsStatus(err, http.StatusNoContent) {
		return nil, nil
	}
	return raw, err
}

func (bc *BackendClient) newRequest(ctx context.Context, method, endpoint string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Cache-Control", "no-store")
	return req, nil
}

func (bc *BackendClient) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	req, err := bc.newRequest(ctx, method, endpoint, in)
	if err != nil {
		return err
	}
	return bc.do(bc.client, req, out)
}

// rawJSON returns the response body untouched. An empty body is returned as
// nil; anything else must be valid JSON.
func (bc *BackendClient) rawJSON(ctx context.Context, method, endpoint string) (json.RawMessage, error) {
	req, err := bc.newRequest(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	body, err := bc.send(bc.client, req)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New("failed to parse response: invalid json")
	}
	return json.RawMessage(body), nil
}

func (bc *BackendClient) postFile(ctx context.Context, endpoint, field, name string, r io.Reader, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return bc.do(bc.client, req, out)
}

func (bc *BackendClient) do(client *http.Client, req *http.Request, out any) error {
	body, err := bc.send(client, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// send performs req and returns the body of a 200 response.
func (bc *BackendClient) send(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: errResp.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
