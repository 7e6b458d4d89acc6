package reel

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/toasterreels/reels/internal/httputil"
)

var feedPageTemplate = template.Must(template.New("feed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Toaster Reels</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #f1f5f9;
            color: #0f172a;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            height: 100vh;
            overflow: hidden;
        }
        header { text-align: center; padding: 0.75rem; }
        header b { color: #0f172a; }
        #feed {
            height: 75vh;
            overflow-y: auto;
            scroll-snap-type: y mandatory;
            scrollbar-width: none;
        }
        #feed::-webkit-scrollbar { display: none; }
        .reel {
            scroll-snap-align: start;
            height: 75vh;
            display: flex;
            align-items: center;
            justify-content: center;
            margin-bottom: 0.5rem;
            position: relative;
        }
        .reel-frame {
            position: relative;
            height: 100%;
            aspect-ratio: 9 / 16;
        }
        .reel video {
            width: 100%;
            height: 100%;
            object-fit: cover;
            border-radius: 12px;
            background: #000;
        }
        .meta {
            position: absolute;
            bottom: 0.75rem;
            left: 1rem;
            color: #fff;
            text-shadow: 0 1px 4px rgba(0,0,0,0.6);
        }
        .meta h2 { font-size: 1.25rem; }
        .meta p { font-size: 0.85rem; }
        .controls {
            position: absolute;
            top: 20%;
            right: -3rem;
            display: flex;
            flex-direction: column;
            gap: 0.75rem;
        }
        .controls button {
            width: 2.5rem;
            height: 2.5rem;
            border-radius: 50%;
            border: 2px solid #e2e8f0;
            background: #f8fafc;
            font-size: 1rem;
            cursor: pointer;
        }
        .controls button.liked { background: #fecaca; border-color: #ef4444; }
        .like-count {
            text-align: center;
            color: #fff;
            font-size: 0.8rem;
            text-shadow: 0 1px 4px rgba(0,0,0,0.6);
        }
        .shop {
            position: absolute;
            bottom: 5rem;
            right: 1rem;
            background: rgba(0,0,0,0.5);
            border-radius: 6px;
            padding: 0.4rem 0.6rem;
        }
        .shop a { color: #fff; font-size: 0.8rem; text-decoration: none; }
        .spinner {
            position: absolute;
            top: 50%;
            left: 50%;
            transform: translate(-50%, -50%);
            width: 42px;
            height: 42px;
            border: 4px solid rgba(255,255,255,0.25);
            border-top-color: #fff;
            border-radius: 50%;
            animation: spin 0.8s linear infinite;
            display: none;
        }
        .spinner.visible { display: block; }
        @keyframes spin { to { transform: translate(-50%, -50%) rotate(360deg); } }
        #sentinel { height: 2px; }
        footer { display: flex; justify-content: center; margin-top: 1rem; }
        #open-upload {
            background: #0f172a;
            color: #f8fafc;
            border: none;
            border-radius: 9999px;
            padding: 0.6rem 1.4rem;
            font-weight: 700;
            cursor: pointer;
        }
        #overlay {
            position: fixed;
            inset: 0;
            background: rgba(0,0,0,0.5);
            display: none;
            align-items: center;
            justify-content: center;
        }
        #overlay.open { display: flex; }
        .popup { background: #fff; border-radius: 10px; padding: 1.25rem; width: 24rem; }
        .popup h2 { font-size: 1.1rem; margin-bottom: 0.75rem; }
        .popup input {
            width: 100%;
            padding: 0.5rem;
            border: 1px solid #cbd5e1;
            border-radius: 6px;
            margin-bottom: 0.5rem;
        }
        .popup .error { color: #dc2626; font-size: 0.8rem; min-height: 1.1rem; }
        #advance {
            width: 100%;
            margin-top: 0.5rem;
            padding: 0.55rem;
            background: #3b82f6;
            color: #fff;
            border: none;
            border-radius: 9999px;
            cursor: pointer;
        }
        #advance:disabled { opacity: 0.5; cursor: default; }
        #progress-track {
            width: 100%;
            height: 0.6rem;
            border-radius: 9999px;
            background: #e2e8f0;
            margin-top: 0.5rem;
            display: none;
        }
        #progress-bar { height: 100%; border-radius: 9999px; background: #2563eb; width: 0; }
    </style>
</head>
<body>
    <header><b>Toaster</b> Reels.</header>
    <main>
        <div id="feed"></div>
        <footer><button id="open-upload">Upload</button></footer>
    </main>

    <div id="overlay">
        <div class="popup">
            <div id="step-meta">
                <h2>Video Details</h2>
                <input type="text" id="in-title" placeholder="Title">
                <input type="text" id="in-tags" placeholder="Hashtags (comma separated)">
                {{if not .Local}}<input type="url" id="in-shop" placeholder="Shop link">{{end}}
            </div>
            <div id="step-file" hidden>
                <h2>Upload Video</h2>
                <input type="file" id="in-file" accept="video/mp4">
                <div id="progress-track"><div id="progress-bar"></div></div>
            </div>
            <p class="error" id="wizard-error"></p>
            <button id="advance">Next</button>
        </div>
    </div>

    <script nonce="{{.Nonce}}">
    "use strict";
    var bootstrap = {{.Bootstrap}};
    var localVariant = {{.Local}};
    var defaultMuted = {{.DefaultMuted}};
    var playThreshold = 0.75;
    var likedByViewer = {};   // ephemeral, reset on reload
    var records = [];

    var feedEl = document.getElementById("feed");

    function renderFeed(next) {
        // Full replace: the push stream always carries complete sets.
        records = next;
        feedEl.textContent = "";
        records.forEach(function (rec) { feedEl.appendChild(renderReel(rec)); });
        if (localVariant) {
            var sentinel = document.createElement("div");
            sentinel.id = "sentinel";
            feedEl.appendChild(sentinel);
            extendObserver.observe(sentinel);
        }
    }

    function renderReel(rec) {
        var item = document.createElement("div");
        item.className = "reel";
        item.dataset.id = rec.id;

        var frame = document.createElement("div");
        frame.className = "reel-frame";

        var video = document.createElement("video");
        video.src = rec.mediaRef;
        video.loop = true;
        video.muted = defaultMuted;
        video.playsInline = true;

        var spinner = document.createElement("div");
        spinner.className = "spinner";

        var meta = document.createElement("div");
        meta.className = "meta";
        var title = document.createElement("h2");
        title.textContent = rec.title;
        var tags = document.createElement("p");
        tags.textContent = (rec.hashtags || []).join(" ");
        meta.appendChild(title);
        meta.appendChild(tags);

        var controls = document.createElement("div");
        controls.className = "controls";
        var likeBtn = button(likedByViewer[rec.id] ? "❤️" : "🤍");
        if (likedByViewer[rec.id]) likeBtn.classList.add("liked");
        var likeCount = document.createElement("div");
        likeCount.className = "like-count";
        likeCount.textContent = rec.likeCount || 0;
        likeBtn.addEventListener("click", function () { toggleLike(rec.id, likeBtn, likeCount); });
        var muteBtn = button(defaultMuted ? "🔇" : "🔊");
        muteBtn.addEventListener("click", function () {
            video.muted = !video.muted;
            muteBtn.textContent = video.muted ? "🔇" : "🔊";
        });
        var shareBtn = button("🔗");
        shareBtn.addEventListener("click", function () {
            navigator.clipboard.writeText(location.origin + "/?videoId=" + rec.id);
        });
        controls.appendChild(likeBtn);
        controls.appendChild(likeCount);
        controls.appendChild(muteBtn);
        controls.appendChild(shareBtn);

        frame.appendChild(video);
        frame.appendChild(spinner);
        frame.appendChild(meta);
        frame.appendChild(controls);
        if (rec.shopUrl) {
            var shop = document.createElement("div");
            shop.className = "shop";
            var link = document.createElement("a");
            link.href = rec.shopUrl;
            link.textContent = "Shop Now";
            shop.appendChild(link);
            frame.appendChild(shop);
        }
        item.appendChild(frame);

        // Play when three quarters visible, pause below; manual tap
        // overrides until the next crossing. Stalls show the spinner.
        playObserver.observe(video);
        video.addEventListener("click", function () {
            if (video.paused) { video.play(); } else { video.pause(); }
        });
        video.addEventListener("waiting", function () { spinner.classList.add("visible"); });
        video.addEventListener("playing", function () { spinner.classList.remove("visible"); });

        return item;
    }

    function button(label) {
        var b = document.createElement("button");
        b.textContent = label;
        return b;
    }

    var playObserver = new IntersectionObserver(function (entries) {
        entries.forEach(function (entry) {
            if (entry.intersectionRatio >= playThreshold) {
                entry.target.play().catch(function () {});
            } else {
                entry.target.pause();
            }
        });
    }, { threshold: playThreshold });

    var extendObserver = new IntersectionObserver(function (entries) {
        entries.forEach(function (entry) {
            if (!entry.isIntersecting) return;
            fetch("/api/feed/extend", { method: "POST" });
        });
    }, { threshold: 0.1 });

    function toggleLike(id, btn, countEl) {
        var wasLiked = !!likedByViewer[id];
        var delta = wasLiked ? -1 : 1;
        var shown = parseInt(countEl.textContent, 10) || 0;
        // Optimistic: flip and adjust the shown count before the store
        // confirms, roll both back exactly on failure. Never below zero.
        var applied = Math.max(shown + delta, 0) - shown;
        likedByViewer[id] = !wasLiked;
        btn.textContent = likedByViewer[id] ? "❤️" : "🤍";
        btn.classList.toggle("liked", likedByViewer[id]);
        countEl.textContent = shown + applied;
        fetch("/api/reels/" + id + "/like", {
            method: "POST",
            headers: { "Content-Type": "application/json" },
            body: JSON.stringify({ delta: delta })
        }).then(function (res) {
            if (!res.ok) throw new Error("like rejected");
        }).catch(function () {
            likedByViewer[id] = wasLiked;
            btn.textContent = wasLiked ? "❤️" : "🤍";
            btn.classList.toggle("liked", wasLiked);
            countEl.textContent = shown;
        });
    }

    // Snapshot push stream; each message replaces the whole list.
    function connectStream() {
        var proto = location.protocol === "https:" ? "wss://" : "ws://";
        var ws = new WebSocket(proto + location.host + "/api/feed/ws");
        ws.onmessage = function (ev) {
            var msg = JSON.parse(ev.data);
            if (msg.type === "snapshot") renderFeed(msg.records || []);
        };
        ws.onclose = function () { setTimeout(connectStream, 2000); };
    }

    // Upload wizard: metadata, then file, then transfer.
    var overlay = document.getElementById("overlay");
    var advance = document.getElementById("advance");
    var wizardError = document.getElementById("wizard-error");
    var metaStep = document.getElementById("step-meta");
    var fileStep = document.getElementById("step-file");
    var progressTrack = document.getElementById("progress-track");
    var progressBar = document.getElementById("progress-bar");
    var onFileStep = false;

    document.getElementById("open-upload").addEventListener("click", function () {
        overlay.classList.add("open");
    });
    overlay.addEventListener("click", function (ev) {
        if (ev.target === overlay) overlay.classList.remove("open");
    });

    advance.addEventListener("click", function () {
        wizardError.textContent = "";
        if (!onFileStep) {
            if (!document.getElementById("in-title").value.trim()) {
                wizardError.textContent = "A title for the video is mandatory.";
                return;
            }
            var shopInput = document.getElementById("in-shop");
            if (shopInput && !shopInput.value.trim()) {
                wizardError.textContent = "A shop link is mandatory.";
                return;
            }
            onFileStep = true;
            metaStep.hidden = true;
            fileStep.hidden = false;
            advance.textContent = "Upload";
            return;
        }

        var fileInput = document.getElementById("in-file");
        var file = fileInput.files[0];
        if (!file) {
            wizardError.textContent = "Uploading an MP4 video is mandatory.";
            return;
        }
        if (file.type !== "video/mp4") {
            wizardError.textContent = "Only MP4 files are allowed.";
            return;
        }

        var form = new FormData();
        form.append("title", document.getElementById("in-title").value);
        form.append("tags", document.getElementById("in-tags").value);
        var shop = document.getElementById("in-shop");
        if (shop) form.append("shopUrl", shop.value);
        form.append("video", file);

        var xhr = new XMLHttpRequest();
        xhr.open("POST", "/api/reels/upload");
        progressTrack.style.display = "block";
        advance.disabled = true;
        fileInput.disabled = true;
        xhr.upload.onprogress = function (ev) {
            if (ev.lengthComputable) {
                progressBar.style.width = Math.round(ev.loaded * 100 / ev.total) + "%";
            }
        };
        xhr.onload = function () {
            advance.disabled = false;
            fileInput.disabled = false;
            if (xhr.status === 201) {
                overlay.classList.remove("open");
                resetWizard();
            } else {
                try {
                    wizardError.textContent = JSON.parse(xhr.responseText).error;
                } catch (e) {
                    wizardError.textContent = "Upload failed.";
                }
            }
        };
        xhr.onerror = function () {
            advance.disabled = false;
            fileInput.disabled = false;
            wizardError.textContent = "Upload failed.";
        };
        xhr.send(form);
    });

    function resetWizard() {
        onFileStep = false;
        metaStep.hidden = false;
        fileStep.hidden = true;
        advance.textContent = "Next";
        progressTrack.style.display = "none";
        progressBar.style.width = "0";
        document.getElementById("in-title").value = "";
        document.getElementById("in-tags").value = "";
        var shop = document.getElementById("in-shop");
        if (shop) shop.value = "";
        document.getElementById("in-file").value = "";
    }

    renderFeed(bootstrap);
    connectStream();

    // Shareable links carry ?videoId=<id>; scroll it into view when it is
    // materialized, otherwise do nothing.
    var targetID = new URLSearchParams(location.search).get("videoId");
    if (targetID) {
        var target = feedEl.querySelector('[data-id="' + CSS.escape(targetID) + '"]');
        if (target) target.scrollIntoView();
    }
    </script>
</body>
</html>`))

type feedPageData struct {
	Nonce        string
	Bootstrap    template.JS
	Local        bool
	DefaultMuted bool
}

// FeedPage renders the vertical feed with the current record set embedded
// as its bootstrap snapshot.
func (h *Handler) FeedPage(w http.ResponseWriter, r *http.Request) {
	records, err := h.feed.List(r.Context())
	if err != nil {
		http.Error(w, "failed to load feed", http.StatusInternalServerError)
		return
	}

	bootstrap, err := json.Marshal(records)
	if err != nil {
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := feedPageTemplate.Execute(w, feedPageData{
		Nonce:        httputil.NonceFromContext(r.Context()),
		Bootstrap:    template.JS(bootstrap),
		Local:        h.Local(),
		DefaultMuted: h.defaultMuted,
	}); err != nil {
		slog.Error("reel: failed to render feed page", "error", err)
	}
}
