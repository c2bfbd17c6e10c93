package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking intercepts requests on a page and fails those whose
// resource type is in the blocked set. Blocking heavy resources keeps
// observation dumps fast on media-rich pages.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return nil
}

// shouldBlock maps CDP resource type names onto the plural config names.
func shouldBlock(blocked map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "image":
		return blocked["images"]
	case "font":
		return blocked["fonts"]
	case "media":
		return blocked["media"]
	case "stylesheet":
		return blocked["stylesheets"]
	}
	return blocked[strings.ToLower(resType)]
}
