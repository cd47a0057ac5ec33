// Package models tracks all api models for request and responses
package models

import "time"

// Stats is the liveness subset of the backend's /monitoring/stats payload.
// Values are kept raw since the backend sends either numbers or
// locale strings such as "15,0 %".
type Stats struct {
	CPUUsage any    `json:"cpu_usage"`
	CPUTemp  any    `json:"cpu_temp"`
	Error    string `json:"error,omitempty"`
}

// Complete reports whether the stats prove the hardware monitor is alive.
func (s Stats) Complete() bool {
	return s.Error == "" && s.CPUUsage != nil && s.CPUTemp != nil
}

type PingResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const PingOffline = "offline"

// Macro is one button on the macro grid. Command is "open_app:<path>" or
// "switch_account:<id>".
type Macro struct {
	Label    string `json:"label"`
	Command  string `json:"macro"`
	Icon     string `json:"icon,omitempty"`
	Position int    `json:"position"`
}

type MacroGrid struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

type MacroConfig struct {
	Grid   MacroGrid `json:"grid"`
	Macros []Macro   `json:"macros"`
}

type DeleteMacroRequest struct {
	Position int `json:"position"`
}

type SwapMacrosRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type MacroIconResponse struct {
	IconPath string `json:"icon_path"`
}

type RunMacroRequest struct {
	Command string `json:"command"`
}

type OpenAppRequest struct {
	AppPath string `json:"app_path"`
}

type SwitchAccountRequest struct {
	SteamID string `json:"steam_id"`
}

type AudioSession struct {
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Volume int    `json:"volume"`
}

// AudioVolume is one entry of the lightweight volume poll.
type AudioVolume struct {
	Name   string `json:"name"`
	Volume int    `json:"volume"`
}

type AudioOutputDevice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type SetOutputDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type SetVolumeRequest struct {
	AppName string `json:"app_name"`
	Volume  int    `json:"volume"`
}

type UploadResponse struct {
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploaded_files"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LivenessStatusResponse struct {
	Online              bool      `json:"online"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
	LastOutcome         string    `json:"last_outcome"`
	RedirectSeq         uint64    `json:"redirect_seq"`
}

type MediaEventRequest struct {
	Buffer int    `json:"buffer"`
	Event  string `json:"event"`
	// Media is the file the page had loaded when the event fired.
	Media string `json:"media,omitempty"`
}

type CapabilitiesRequest struct {
	FrameCallback bool `json:"frame_callback"`
	PlayingEvent  bool `json:"playing_event"`
}

type BufferState struct {
	ID       int    `json:"id"`
	Src      string `json:"src,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Position string `json:"position"`
	Animate  bool   `json:"animate"`
	Playing  bool   `json:"playing"`
	Active   bool   `json:"active"`
}

type SlideshowStateResponse struct {
	State          string        `json:"state"`
	Index          int           `json:"index"`
	Length         int           `json:"length"`
	FrameCallback  bool          `json:"frame_callback"`
	Buffers        []BufferState `json:"buffers"`
	PreloadedMedia string        `json:"preloaded_media,omitempty"`
}

type DefaultPageRequest struct {
	Page string `json:"page"`
}

type HiddenPagesRequest struct {
	Pages []string `json:"pages"`
}

type ThemeRequest struct {
	Name string `json:"name"`
}

type ThemeResponse struct {
	Name string            `json:"name"`
	Vars map[string]string `json:"vars"`
}

type HiddenSessionsRequest struct {
	IDs []string `json:"ids"`
}
