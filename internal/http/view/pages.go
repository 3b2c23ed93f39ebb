package view

import (
	"bytes"
	"html/template"
)

const baseStyle = `
	:root {
		--bg: #0a0b10;
		--card: rgba(255, 255, 255, 0.05);
		--border: rgba(255, 255, 255, 0.14);
		--text: #e9edfb;
		--muted: #9fa9c3;
		--accent: #86efac;
		font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
	}
	* { box-sizing: border-box; }
	body {
		margin: 0;
		min-height: 100vh;
		display: flex;
		align-items: center;
		justify-content: center;
		background: radial-gradient(circle at 80% 10%, #10192e, #05070d 65%);
		color: var(--text);
	}
	.card {
		background: var(--card);
		border: 1px solid var(--border);
		border-radius: 18px;
		padding: 32px;
		width: min(520px, 92vw);
		box-shadow: 0 45px 100px rgba(0,0,0,0.35);
		backdrop-filter: blur(18px);
	}
	h1 { font-size: 1.5rem; margin: 0 0 6px; }
	p { color: var(--muted); margin-top: 0; }
	code {
		padding: 2px 8px;
		border-radius: 8px;
		background: rgba(134, 239, 172, 0.1);
		border: 1px solid rgba(134, 239, 172, 0.3);
		color: var(--accent);
	}
	.meta {
		margin-top: 20px;
		font-size: 0.85rem;
		color: rgba(233, 237, 251, 0.6);
	}
`

// ShellPageData provides the dynamic fields of the shell page.
type ShellPageData struct {
	Title string
}

// The shell page is what a bare GET / serves. Its only job beyond the
// landing card is the fragment hop: a "#/r/<code>" fragment never reaches
// the server, so the inline script rewrites it into a real /r/<code>
// request, carrying the client attributes the visit ledger records.
var shellPageTmpl = template.Must(template.New("shell_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{.Title}}</title>
	<style>` + baseStyle + `</style>
</head>
<body>
	<div class="card">
		<h1>{{.Title}}</h1>
		<p>Short links resolve at <code>/r/&lt;code&gt;</code> or via a <code>#/r/&lt;code&gt;</code> fragment on this page.</p>
		<div class="meta">Manage links through <code>/api/links</code>.</div>
	</div>

	<script>
		(function() {
			const match = /^#\/?r\/(.+)$/.exec(window.location.hash || "");
			if (!match) {
				return;
			}

			const params = new URLSearchParams();
			params.set("lang", navigator.language || "en");
			let tz = "UTC";
			try {
				tz = Intl.DateTimeFormat().resolvedOptions().timeZone || "UTC";
			} catch (e) {}
			params.set("tz", tz);
			const w = (window.screen && window.screen.width) || "?";
			const h = (window.screen && window.screen.height) || "?";
			params.set("screen", w + "x" + h);
			if (document.referrer) {
				params.set("ref", document.referrer);
			}

			window.location.replace("/r/" + encodeURIComponent(match[1]) + "?" + params.toString());
		})();
	</script>
</body>
</html>
`))

// RenderShellPage expands the shell page template.
func RenderShellPage(data ShellPageData) (string, error) {
	if data.Title == "" {
		data.Title = "fraglink"
	}
	var buf bytes.Buffer
	if err := shellPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NotFoundPageData provides the dynamic fields of the unknown-link page.
type NotFoundPageData struct {
	Code string
}

var notFoundPageTmpl = template.Must(template.New("not_found_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>Link not found</title>
	<style>` + baseStyle + `</style>
</head>
<body>
	<div class="card">
		<h1>Link not found</h1>
		<p>No short link answers to <code>{{.Code}}</code>. Codes are case-sensitive; check the exact spelling.</p>
		<div class="meta"><a href="/" style="color: var(--accent)">Back to start</a></div>
	</div>
</body>
</html>
`))

// RenderNotFoundPage expands the unknown-link page template.
func RenderNotFoundPage(data NotFoundPageData) (string, error) {
	var buf bytes.Buffer
	if err := notFoundPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
