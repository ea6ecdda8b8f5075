package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/use-agent/fetchgate/engine"
)

const disableWebGLJS = `() => {
	const getContext = HTMLCanvasElement.prototype.getContext;
	HTMLCanvasElement.prototype.getContext = function(type, ...args) {
		if (typeof type === 'string' && type.toLowerCase().includes('webgl')) return null;
		return getContext.call(this, type, ...args);
	};
	delete window.WebGLRenderingContext;
	delete window.WebGL2RenderingContext;
}`

const canvasNoiseJS = `() => {
	const shift = Math.floor(Math.random() * 10) - 5;
	const noisify = (canvas) => {
		const ctx = canvas.getContext('2d');
		if (!ctx || !canvas.width || !canvas.height) return;
		const img = ctx.getImageData(0, 0, canvas.width, canvas.height);
		for (let i = 0; i < img.data.length; i += 4) {
			img.data[i] = img.data[i] + shift;
		}
		ctx.putImageData(img, 0, 0);
	};
	const toDataURL = HTMLCanvasElement.prototype.toDataURL;
	HTMLCanvasElement.prototype.toDataURL = function(...args) {
		noisify(this);
		return toDataURL.apply(this, args);
	};
	const toBlob = HTMLCanvasElement.prototype.toBlob;
	HTMLCanvasElement.prototype.toBlob = function(...args) {
		noisify(this);
		return toBlob.apply(this, args);
	};
}`

const blockWebRTCJS = `() => {
	for (const name of ['RTCPeerConnection', 'webkitRTCPeerConnection', 'RTCDataChannel', 'RTCSessionDescription', 'RTCIceCandidate']) {
		try { delete window[name]; } catch (e) {}
		try { Object.defineProperty(window, name, { value: undefined, configurable: false }); } catch (e) {}
	}
	if (navigator.mediaDevices) {
		navigator.mediaDevices.getUserMedia = () => Promise.reject(new DOMException('Permission denied', 'NotAllowedError'));
	}
}`

// injectStealth registers the anti-detection scripts for the next
// navigation. The returned func removes them again.
func injectStealth(page *rod.Page, opts engine.Options) func() {
	scripts := stealthScripts(opts)
	removers := make([]func() error, 0, len(scripts))
	for _, js := range scripts {
		remove, err := page.EvalOnNewDocument(js)
		if err != nil {
			slog.Warn("stealth injection failed, proceeding without it", "error", err)
			continue
		}
		removers = append(removers, remove)
	}
	return func() {
		for _, remove := range removers {
			_ = remove()
		}
	}
}

// stealthScripts lists the scripts to run before any page script.
func stealthScripts(opts engine.Options) []string {
	scripts := []string{stealth.JS}
	if !opts.Bool(engine.OptAllowWebGL, true) {
		scripts = append(scripts, "("+disableWebGLJS+")()")
	}
	if opts.Bool(engine.OptHideCanvas, false) {
		scripts = append(scripts, "("+canvasNoiseJS+")()")
	}
	if opts.Bool(engine.OptBlockWebRTC, false) {
		scripts = append(scripts, "("+blockWebRTCJS+")()")
	}
	return scripts
}
