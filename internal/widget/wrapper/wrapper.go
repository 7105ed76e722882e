package wrapper

import (
	"fmt"
	"regexp"
	"strings"
)

// Layout modes for the injected runtime.
const (
	ModeEmbedded   = "embedded"
	ModeFullscreen = "fullscreen"
)

const cssResetBase = `
  *, *::before, *::after { box-sizing: border-box; }
  html, body { margin: 0; padding: 0; }
`

const cssResetEmbedded = cssResetBase + `
  html, body { overflow: hidden; }
  :root { --widget-layout: embedded; }
`

const cssResetFullscreen = cssResetBase + `
  html, body { height: 100% !important; min-height: 100% !important; }
  :root { --widget-layout: fullscreen; }
`

var (
	htmlTagRe = regexp.MustCompile(`(?i)<html[\s>]`)
	headTagRe = regexp.MustCompile(`(?i)<head[\s>]`)
	htmlRepRe = regexp.MustCompile(`(?i)<html([^>]*)>`)
	headRepRe = regexp.MustCompile(`(?i)<head([^>]*)>`)
)

// frameworkTemplate is the runtime script injected into every widget
// document. It exposes the `widget` object and speaks the postMessage
// protocol; the whole body sits in a try/catch so even initialization
// failures are reported instead of silently breaking the page.
// %s placeholders: layout mode.
const frameworkTemplate = `
(function() {
  'use strict';

  const LAYOUT_MODE = '%s';
  let lastHeight = 0;
  let requestId = 0;
  const pendingRequests = new Map();

  function reportError(message, stack) {
    parent.postMessage({
      type: 'error',
      error: message,
      stack: stack || new Error().stack
    }, '*');
  }

  try {
    const widget = window.widget = {};
    let stateCallback = null;
    const trackedAppIds = new Set();

    widget.onState = function(callback) {
      if (typeof callback !== 'function') {
        reportError('onState requires a function callback');
        return;
      }
      stateCallback = callback;
    };

    function reportHeight() {
      const height = document.body.scrollHeight;
      if (height !== lastHeight) {
        lastHeight = height;
        parent.postMessage({ type: 'resize', height }, '*');
      }
    }

    function setupResizeObserver() {
      new ResizeObserver(() => reportHeight()).observe(document.body);
      new MutationObserver(() => setTimeout(reportHeight, 0)).observe(document.body, {
        childList: true,
        subtree: true,
        attributes: true
      });
    }

    window.addEventListener('message', (e) => {
      try {
        const { type, state, id, data, error, appId } = e.data || {};

        if (type === 'state' && stateCallback) {
          stateCallback(state);
        }

        if (type === 'response' && pendingRequests.has(id)) {
          const { resolve, reject } = pendingRequests.get(id);
          pendingRequests.delete(id);
          if (error) {
            reject(new Error(error));
          } else if (data && !data.ok) {
            reject(new Error(data.error || 'Request failed'));
          } else {
            resolve(data?.result);
          }
        }

        if (type === 'stateUpdated' && appId && trackedAppIds.has(appId)) {
          widget.getState(appId);
        }
      } catch (err) {
        reportError('Message handler error: ' + err.message, err.stack);
      }
    });

    widget.getState = function(appId) {
      if (!appId || typeof appId !== 'string') {
        reportError('getState: appId must be a non-empty string');
        return;
      }
      trackedAppIds.add(appId);
      parent.postMessage({ type: 'getState', appId }, '*');
    };

    widget.setState = function(appId, state) {
      if (!appId || typeof appId !== 'string') {
        reportError('setState: appId must be a non-empty string');
        return;
      }
      parent.postMessage({ type: 'setState', appId, state }, '*');
    };

    widget.request = function(appId, action, payload) {
      if (!appId || typeof appId !== 'string') {
        return Promise.reject(new Error('request: appId must be a non-empty string'));
      }
      if (!action || typeof action !== 'string') {
        return Promise.reject(new Error('request: action must be a non-empty string'));
      }
      return new Promise((resolve, reject) => {
        const id = ++requestId;
        pendingRequests.set(id, { resolve, reject });
        parent.postMessage({ type: 'request', id, appId, action, payload }, '*');
        setTimeout(() => {
          if (pendingRequests.has(id)) {
            pendingRequests.delete(id);
            reject(new Error('Request timeout after 30s'));
          }
        }, 30000);
      });
    };

    function init() {
      document.body.classList.add('widget-' + LAYOUT_MODE);
      setupResizeObserver();
      reportHeight();
    }

    if (document.readyState === 'loading') {
      document.addEventListener('DOMContentLoaded', init);
    } else {
      init();
    }

    window.addEventListener('load', () => reportHeight());

    window.onerror = function(msg, url, line, col, err) {
      reportError(msg + ' at line ' + line, err?.stack);
    };
    window.onunhandledrejection = function(e) {
      reportError('Unhandled promise rejection: ' + e.reason, e.reason?.stack);
    };

  } catch (err) {
    reportError('Widget initialization error: ' + err.message, err.stack);
  }
})();
`

// framework builds the runtime script for one layout mode.
func framework(mode string) string {
	return fmt.Sprintf(frameworkTemplate, mode)
}

// injectIntoHTML rewrites the document head to carry the style and
// script pair, or synthesizes a full document when the fragment has no
// html/head structure.
func injectIntoHTML(html, css, js string) string {
	injection := "<style>" + css + "</style><script>" + js + "</script>"

	if htmlTagRe.MatchString(html) {
		if headTagRe.MatchString(html) {
			return replaceFirst(headRepRe, html, "<head$1>"+injection)
		}
		return replaceFirst(htmlRepRe, html, "<html$1><head>"+injection+"</head>")
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	b.WriteString(injection)
	b.WriteString("\n</head>\n<body>\n")
	b.WriteString(html)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}

// replaceFirst expands repl against the first match only.
func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	match := s[loc[0]:loc[1]]
	return s[:loc[0]] + re.ReplaceAllString(match, repl) + s[loc[1]:]
}

// WrapWidgetHTML injects the widget runtime into agent-authored HTML.
// ModeEmbedded hides overflow for iframe embedding; ModeFullscreen
// fills the viewport for the standalone tab.
func WrapWidgetHTML(html, mode string) string {
	css := cssResetEmbedded
	if mode == ModeFullscreen {
		css = cssResetFullscreen
	}
	return injectIntoHTML(html, css, framework(mode))
}
