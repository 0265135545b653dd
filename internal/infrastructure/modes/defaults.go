package modes

import "github.com/doeshing/vocmd/internal/domain"

// globalCommands stay reachable from every context.
var globalCommands = []string{"lock_screen", "open_settings", "set_volume", "take_screenshot"}

func withGlobal(ids ...string) []string {
	out := append([]string(nil), ids...)
	for _, g := range globalCommands {
		if !containsString(out, g) {
			out = append(out, g)
		}
	}
	return out
}

func defaultSettings() map[domain.ContextType]domain.ContextualSettings {
	concise := domain.VoiceBehavior{Verbosity: "concise", Tone: "helpful", SpeechRate: 1.0}
	return map[domain.ContextType]domain.ContextualSettings{
		domain.ContextTasks: {
			Context:           domain.ContextTasks,
			EnabledCommands:   withGlobal("create_task", "complete_task", "list_tasks", "delete_task", "search_web", "new_chat"),
			Voice:             domain.VoiceBehavior{Verbosity: "concise", Tone: "encouraging", SpeechRate: 1.0, AutoListen: true},
			ShowConfirmations: true,
			ShowHints:         true,
			Priority:          8,
		},
		domain.ContextChat: {
			Context:           domain.ContextChat,
			EnabledCommands:   withGlobal("new_chat", "send_message", "clear_chat", "search_web", "open_url", "create_task"),
			Voice:             domain.VoiceBehavior{Verbosity: "detailed", Tone: "conversational", SpeechRate: 1.0, AutoListen: true},
			ShowConfirmations: true,
			ShowHints:         false,
			Priority:          7,
		},
		domain.ContextSettings: {
			Context:           domain.ContextSettings,
			EnabledCommands:   withGlobal("toggle_setting"),
			Voice:             domain.VoiceBehavior{Verbosity: "detailed", Tone: "precise", SpeechRate: 0.9},
			ShowConfirmations: true,
			ShowHints:         true,
			Priority:          5,
		},
		domain.ContextBrowser: {
			Context:           domain.ContextBrowser,
			EnabledCommands:   withGlobal("open_browser", "open_url", "search_web", "close_tab", "click_element", "scroll_page", "fill_form"),
			Voice:             concise,
			ShowConfirmations: true,
			ShowHints:         true,
			Priority:          6,
		},
		domain.ContextDashboard: {
			Context:           domain.ContextDashboard,
			EnabledCommands:   []string{domain.AllCommands},
			Voice:             concise,
			ShowConfirmations: true,
			ShowHints:         true,
			Priority:          4,
		},
		domain.ContextDevelopment: {
			Context:           domain.ContextDevelopment,
			EnabledCommands:   withGlobal("launch_app", "close_app", "list_apps", "list_files", "open_file", "read_file", "open_url", "search_web", "create_task"),
			Voice:             domain.VoiceBehavior{Verbosity: "minimal", Tone: "technical", SpeechRate: 1.1},
			ShowConfirmations: true,
			ShowHints:         false,
			Priority:          6,
		},
		domain.ContextMedia: {
			Context:           domain.ContextMedia,
			EnabledCommands:   withGlobal("play_media", "pause_media", "next_track", "search_web"),
			Voice:             domain.VoiceBehavior{Verbosity: "minimal", Tone: "relaxed", SpeechRate: 1.0},
			ShowConfirmations: false,
			ShowHints:         false,
			Priority:          3,
		},
		domain.ContextUnknown: {
			Context:           domain.ContextUnknown,
			EnabledCommands:   []string{domain.AllCommands},
			Voice:             concise,
			ShowConfirmations: true,
			ShowHints:         true,
			Priority:          1,
		},
	}
}

func defaultSuggestions() map[domain.ContextType][]domain.ContextSuggestion {
	return map[domain.ContextType][]domain.ContextSuggestion{
		domain.ContextTasks: {
			{Command: "create_task", Phrase: "create a task to ...", Description: "Capture a new task", Confidence: 0.8},
			{Command: "list_tasks", Phrase: "show my tasks", Description: "Review what is pending", Confidence: 0.8},
			{Command: "complete_task", Phrase: "complete task ...", Description: "Check off finished work", Confidence: 0.7},
		},
		domain.ContextChat: {
			{Command: "new_chat", Phrase: "start a new chat", Description: "Begin a fresh conversation", Confidence: 0.8},
			{Command: "send_message", Phrase: "send message ...", Description: "Reply in the conversation", Confidence: 0.8},
			{Command: "clear_chat", Phrase: "clear the chat", Description: "Wipe the conversation", Confidence: 0.7},
		},
		domain.ContextSettings: {
			{Command: "toggle_setting", Phrase: "toggle setting ...", Description: "Flip a preference", Confidence: 0.8},
			{Command: "set_volume", Phrase: "set volume to ...", Description: "Adjust loudness", Confidence: 0.7},
		},
		domain.ContextBrowser: {
			{Command: "search_web", Phrase: "search for ...", Description: "Look something up", Confidence: 0.8},
			{Command: "open_url", Phrase: "go to ...", Description: "Open a website", Confidence: 0.8},
			{Command: "scroll_page", Phrase: "scroll down", Description: "Move through the page", Confidence: 0.7},
		},
		domain.ContextDashboard: {
			{Command: "list_tasks", Phrase: "show my tasks", Description: "See today's work", Confidence: 0.8},
			{Command: "open_browser", Phrase: "open chrome", Description: "Start browsing", Confidence: 0.7},
		},
		domain.ContextDevelopment: {
			{Command: "open_file", Phrase: "open file ...", Description: "Open a source file", Confidence: 0.8},
			{Command: "list_files", Phrase: "list files", Description: "Browse the project", Confidence: 0.7},
			{Command: "search_web", Phrase: "search for ...", Description: "Look up documentation", Confidence: 0.7},
		},
		domain.ContextMedia: {
			{Command: "play_media", Phrase: "play music", Description: "Start playback", Confidence: 0.8},
			{Command: "next_track", Phrase: "next song", Description: "Skip ahead", Confidence: 0.7},
		},
		domain.ContextUnknown: {
			{Command: "list_tasks", Phrase: "show my tasks", Description: "See what is pending", Confidence: 0.7},
			{Command: "open_browser", Phrase: "open browser", Description: "Start browsing", Confidence: 0.7},
		},
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
