package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

type LandingPage struct {
	Theme       map[string]string
	DefaultPage string
	Outcome     string
	Failures    int
	LastSuccess time.Time
}

type SlideshowPage struct {
	Theme map[string]string
}

func layout(title string, theme map[string]string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
				`<meta name="viewport" content="width=device-width, initial-scale=1">`+
				`<title>%s</title><style>%s</style></head><body>`,
			templ.EscapeString(title), themeStyle(theme),
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Landing is shown while the PC is unreachable. It offers wake-on-LAN and
// moves to the default page once the kiosk reports the PC online again.
func Landing(p LandingPage) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		lastSeen := "never"
		if !p.LastSuccess.IsZero() {
			lastSeen = p.LastSuccess.Format(time.Kitchen)
		}
		_, err := fmt.Fprintf(w,
			`<main id="offline" data-default-page="%s">`+
				`<h1>PC offline</h1>`+
				`<p class="muted">Last check: %s, %d failed in a row, last seen %s.</p>`+
				`<button id="wake" type="button">Wake PC</button>`+
				`<p id="wake-status" class="muted"></p>`+
				`</main><script>%s</script>`,
			templ.EscapeString(p.DefaultPage),
			templ.EscapeString(p.Outcome), p.Failures, templ.EscapeString(lastSeen),
			landingScript,
		)
		return err
	})
	return layout("Offline", p.Theme, body)
}

// Slideshow renders the two display buffers and the script that reports
// their media events back to the scheduler.
func Slideshow(p SlideshowPage) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div id="stage">`+
				`<div class="buffer" data-buffer="0"></div>`+
				`<div class="buffer" data-buffer="1"></div>`+
				`</div><script>%s</script>`,
			slideshowScript,
		)
		return err
	})
	return layout("Slideshow", p.Theme, body)
}

const landingScript = `
const main = document.getElementById("offline");
document.getElementById("wake").addEventListener("click", async () => {
  const status = document.getElementById("wake-status");
  const resp = await fetch("/wake", { method: "POST" });
  status.textContent = resp.ok ? "Wake signal sent" : "Wake failed";
});
setInterval(async () => {
  try {
    const resp = await fetch("/kiosk/status", { cache: "no-store" });
    const status = await resp.json();
    if (status.online && status.last_outcome === "online") {
      window.location.href = main.dataset.defaultPage;
    }
  } catch (e) {}
}, 5000);
`

const slideshowScript = `
const buffers = [...document.querySelectorAll(".buffer")];
const frameCallback = "requestVideoFrameCallback" in HTMLVideoElement.prototype;
let redirectSeq = null;

function report(id, event, media) {
  fetch("/slideshow/events", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ buffer: id, event: event, media: media }),
  });
}

function mount(el, state) {
  if (el.dataset.src === (state.src || "")) return el.firstChild;
  el.dataset.src = state.src || "";
  el.replaceChildren();
  if (!state.src) return null;
  const name = decodeURIComponent(state.src.split("/").pop());
  let media;
  if (state.kind === "video") {
    media = document.createElement("video");
    media.muted = true;
    media.playsInline = true;
    media.addEventListener("playing", () => report(state.id, "playing", name));
    media.addEventListener("timeupdate", () => report(state.id, "progress", name));
    media.addEventListener("waiting", () => report(state.id, "waiting", name));
    media.addEventListener("stalled", () => report(state.id, "stalled", name));
    media.addEventListener("ended", () => report(state.id, "ended", name));
    if (frameCallback) {
      media.requestVideoFrameCallback(() => report(state.id, "first_frame", name));
    }
  } else {
    media = document.createElement("img");
    media.addEventListener("load", () => report(state.id, "ready", name));
  }
  media.addEventListener("error", () => report(state.id, "error", name));
  media.dataset.name = name;
  media.src = state.src;
  el.appendChild(media);
  return media;
}

async function poll() {
  try {
    const resp = await fetch("/slideshow/state", { cache: "no-store" });
    const state = await resp.json();
    state.buffers.forEach((b) => {
      const el = buffers[b.id];
      const media = mount(el, b);
      el.className = "buffer " + b.position + (b.animate ? " animate" : "");
      if (media && media.tagName === "VIDEO") {
        if (b.playing && media.paused) media.play().catch(() => report(b.id, "error", media.dataset.name));
        if (!b.playing && !media.paused) media.pause();
      }
    });
    const status = await (await fetch("/kiosk/status", { cache: "no-store" })).json();
    if (redirectSeq !== null && status.redirect_seq !== redirectSeq) {
      window.location.href = "/";
    }
    redirectSeq = status.redirect_seq;
  } catch (e) {}
}

fetch("/slideshow/capabilities", {
  method: "POST",
  headers: { "Content-Type": "application/json" },
  body: JSON.stringify({ frame_callback: frameCallback, playing_event: true }),
});
setInterval(poll, 250);
poll();
`
