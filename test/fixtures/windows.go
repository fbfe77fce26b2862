// Package fixtures provides window trees and event streams for integration tests.
package fixtures

import (
	"strings"

	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
)

const (
	ChatApp    = "com.whatsapp"
	BrowserApp = "com.android.chrome"
)

// ChatWindow is a messaging screen with a focused compose box.
type ChatWindow struct {
	Root    *infra.MemNode
	Compose *infra.MemNode
}

// NewChatWindow builds a chat screen whose compose box holds text.
func NewChatWindow(text string) *ChatWindow {
	compose := infra.NewEditableNode(text).
		WithFocused(true).
		WithDescription("Message")
	root := infra.NewMemNode("android.widget.FrameLayout").Append(
		infra.NewMemNode("android.widget.TextView").WithText("Alice"),
		infra.NewMemNode("androidx.recyclerview.widget.RecyclerView").Append(
			infra.NewMemNode("android.widget.TextView").WithText("hey, are you there?"),
		),
		infra.NewMemNode("android.widget.LinearLayout").Append(compose),
	)
	return &ChatWindow{Root: root, Compose: compose}
}

// BrowserPage is a web page whose search field is a web view node that
// accepts text without reporting itself editable. The address bar shows
// the URL read-only, as it does when not focused.
type BrowserPage struct {
	Root      *infra.MemNode
	URLBar    *infra.MemNode
	WebSearch *infra.MemNode
}

// NewBrowserPage builds a browser screen with query typed into the page.
func NewBrowserPage(url, query string) *BrowserPage {
	urlBar := infra.NewMemNode("android.widget.TextView").
		WithText(url).
		WithDescription("Address bar")
	search := infra.NewMemNode("android.webkit.WebView.input").
		WithText(query).
		WithDescription("Search").
		WithAcceptsText(true)
	root := infra.NewMemNode("android.widget.FrameLayout").Append(
		urlBar,
		infra.NewMemNode("android.webkit.WebView").Append(
			infra.NewMemNode("android.view.View").Append(search),
		),
	)
	return &BrowserPage{Root: root, URLBar: urlBar, WebSearch: search}
}

// ReplayStream renders JSON lines for the replay source.
func ReplayStream(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
