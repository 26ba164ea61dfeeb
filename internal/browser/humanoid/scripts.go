package humanoid

// Page-side snippets. Each is a function expression evaluated with JSON arguments.

// ensureCursorScript creates the cursor marker unless the document already has one.
// Returns true when it created the marker.
const ensureCursorScript = `(id) => {
	if (document.getElementById(id)) return false;
	const el = document.createElement('div');
	el.id = id;
	el.setAttribute('aria-hidden', 'true');
	Object.assign(el.style, {
		position: 'fixed', left: '0px', top: '0px', width: '14px', height: '14px',
		marginLeft: '-7px', marginTop: '-7px', borderRadius: '50%',
		background: 'rgba(235, 64, 52, 0.75)', border: '2px solid #fff',
		boxShadow: '0 0 4px rgba(0, 0, 0, 0.45)', pointerEvents: 'none',
		zIndex: '2147483647', transform: 'translate(0px, 0px)'
	});
	(document.body || document.documentElement).appendChild(el);
	return true;
}`

// measureScript scrolls the target into view and reports its viewport geometry plus the
// identifier and instrumentation attributes. Returns null when nothing matches.
const measureScript = `(sel, attr, instrumentedAttr) => {
	const node = document.querySelector(sel);
	if (!node) return null;
	node.scrollIntoView({ block: 'center', inline: 'center', behavior: 'instant' });
	const r = node.getBoundingClientRect();
	return {
		vertices: [r.left, r.top, r.right, r.top, r.right, r.bottom, r.left, r.bottom],
		width: r.width,
		height: r.height,
		tagName: node.tagName || '',
		testId: node.getAttribute(attr) || '',
		instrumented: node.hasAttribute(instrumentedAttr)
	};
}`

// moveCursorScript moves the marker to (x, y). With a positive duration it resolves on
// transitionend, or after a page-side fallback timer when the event never fires.
const moveCursorScript = `(id, x, y, ms, easing) => new Promise((resolve) => {
	const el = document.getElementById(id);
	if (!el) { resolve(false); return; }
	const target = 'translate(' + x + 'px, ' + y + 'px)';
	if (ms <= 0) {
		el.style.transition = 'none';
		el.style.transform = target;
		resolve(true);
		return;
	}
	let done = false;
	const finish = () => {
		if (done) return;
		done = true;
		el.removeEventListener('transitionend', finish);
		resolve(true);
	};
	el.addEventListener('transitionend', finish);
	setTimeout(finish, ms + 50);
	el.style.transition = 'transform ' + ms + 'ms ' + easing;
	void el.offsetWidth;
	el.style.transform = target;
})`

// annotateScript shows a short label next to (x, y) and removes it after ttl milliseconds.
const annotateScript = `(text, x, y, ttl) => {
	const label = document.createElement('div');
	label.textContent = text;
	label.setAttribute('data-pagechain-annotation', '');
	Object.assign(label.style, {
		position: 'fixed', left: (x + 14) + 'px', top: (y + 14) + 'px',
		padding: '2px 6px', borderRadius: '4px', font: '12px/1.4 sans-serif',
		color: '#fff', background: 'rgba(20, 20, 20, 0.8)', pointerEvents: 'none',
		zIndex: '2147483647', whiteSpace: 'nowrap'
	});
	(document.body || document.documentElement).appendChild(label);
	setTimeout(() => label.remove(), ttl);
}`

// pulseScript plays a short press animation on the marker.
const pulseScript = `(id, ms) => {
	const el = document.getElementById(id);
	if (!el || typeof el.animate !== 'function') return;
	el.animate(
		[{ transform: el.style.transform + ' scale(1)' }, { transform: el.style.transform + ' scale(0.6)' }, { transform: el.style.transform + ' scale(1)' }],
		{ duration: Math.max(ms, 80) }
	);
}`
