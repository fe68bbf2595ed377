package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPage is returned when navigating to a page that does not exist.
var ErrUnknownPage = errors.New("unknown page")

// Page is one of the client's top-level views.
type Page string

const (
	PageChat     Page = "chat"
	PageModels   Page = "models"
	PageSystem   Page = "system"
	PageHistory  Page = "history"
	PageSettings Page = "settings"
	PageBehavior Page = "behavior-settings"
)

var pages = []Page{PageChat, PageModels, PageSystem, PageHistory, PageSettings, PageBehavior}

// Pages returns every page in navigation order.
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// ParsePage validates a page name.
func ParsePage(name string) (Page, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range pages {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPage, name)
}

// Title returns the label shown in navigation.
func (p Page) Title() string {
	switch p {
	case PageChat:
		return "Chat"
	case PageModels:
		return "Models"
	case PageSystem:
		return "System"
	case PageHistory:
		return "History"
	case PageSettings:
		return "Settings"
	case PageBehavior:
		return "Behavior"
	default:
		return string(p)
	}
}
