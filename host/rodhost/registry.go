package rodhost

// The page keeps every node the host created in window.__fibre.nodes, keyed
// by Handle. Handle 1 is document.body. Every function returns what the Go
// side needs to log the mutation: the node's XPath (empty while detached),
// its tag, its node type and, for insertions, its serialised markup.

const installJS = `() => {
	if (window.__fibre) return;
	const nodes = new Map([[1, document.body]]);
	const ids = new WeakMap([[document.body, 1]]);
	const handlers = new Map();
	const step = (n) => n.nodeType === 3 ? 'text()' : n.nodeType === 8 ? 'comment()' : n.nodeName.toLowerCase();
	const xpath = (n) => {
		if (!n.isConnected) return '';
		const steps = [];
		for (; n && n.nodeType !== 9; n = n.parentNode) {
			const name = step(n);
			let idx = 0, count = 0;
			for (const s of n.parentNode ? n.parentNode.childNodes : [n]) {
				if (step(s) === name) {
					count++;
					if (s === n) idx = count;
				}
			}
			steps.unshift(count > 1 ? name + '[' + idx + ']' : name);
		}
		return '/' + steps.join('/');
	};
	const get = (id) => {
		const n = nodes.get(id);
		if (!n) throw new Error('unknown node ' + id);
		return n;
	};
	const describe = (n) => ({
		xpath: xpath(n),
		tag: n.nodeType === 1 ? n.nodeName.toLowerCase() : '',
		type: n.nodeType,
	});
	window.__fibre = {nodes, ids, handlers, next: 2, xpath, get, describe};
}`

const createJS = `(text, tag) => {
	const f = window.__fibre;
	const n = text ? document.createTextNode('') : document.createElement(tag);
	const id = f.next++;
	f.nodes.set(id, n);
	f.ids.set(n, id);
	return id;
}`

const applyJS = `(id, changes) => {
	const f = window.__fibre;
	const n = f.get(id);
	const out = [];
	for (const c of changes) {
		switch (c.op) {
		case 'text': {
			const old = n.data;
			n.data = c.value;
			out.push({op: 'text', value: c.value, old});
			break;
		}
		case 'set': {
			const old = n.getAttribute(c.name);
			n.setAttribute(c.name, c.value);
			out.push({op: 'attr', name: c.name, value: c.value, old: old === null ? '' : old});
			break;
		}
		case 'remove':
			if (n.hasAttribute(c.name)) {
				const old = n.getAttribute(c.name);
				n.removeAttribute(c.name);
				out.push({op: 'attr_del', name: c.name, old});
			}
			break;
		case 'listen': {
			let hs = f.handlers.get(id);
			if (!hs) {
				hs = {};
				f.handlers.set(id, hs);
			}
			if (hs[c.name]) n.removeEventListener(c.name, hs[c.name]);
			hs[c.name] = (e) => window.__fibreEvent({id, target: f.ids.get(e.target) || 0, type: e.type});
			n.addEventListener(c.name, hs[c.name]);
			out.push({op: 'listen', name: c.name});
			break;
		}
		case 'unlisten': {
			const hs = f.handlers.get(id);
			if (hs && hs[c.name]) {
				n.removeEventListener(c.name, hs[c.name]);
				delete hs[c.name];
			}
			out.push({op: 'unlisten', name: c.name});
			break;
		}
		}
	}
	return Object.assign(f.describe(n), {records: out});
}`

const appendJS = `(p, c, ref) => {
	const f = window.__fibre;
	const pn = f.get(p), cn = f.get(c);
	if (cn.parentNode) throw new Error('child already attached');
	if (ref) {
		const rn = f.get(ref);
		if (rn.parentNode !== pn) throw new Error('reference is not a child of parent');
		pn.insertBefore(cn, rn);
	} else {
		pn.appendChild(cn);
	}
	return Object.assign(f.describe(cn), {html: cn.nodeType === 1 ? cn.outerHTML : cn.data});
}`

const removeJS = `(p, c) => {
	const f = window.__fibre;
	const pn = f.get(p), cn = f.get(c);
	if (cn.parentNode !== pn) throw new Error('node is not a child of parent');
	const d = f.describe(cn);
	pn.removeChild(cn);
	return d;
}`

// disposeJS forgets a detached node and every registered node below it.
const disposeJS = `(id) => {
	const f = window.__fibre;
	const n = f.nodes.get(id);
	if (!n || n.parentNode) return [];
	const gone = [];
	const walk = (m) => {
		const mid = f.ids.get(m);
		if (mid) {
			f.nodes.delete(mid);
			f.handlers.delete(mid);
			gone.push(mid);
		}
		for (const ch of m.childNodes) walk(ch);
	};
	walk(n);
	return gone;
}`

const innerHTMLJS = `(id) => window.__fibre.get(id).innerHTML`

const dispatchJS = `(id, type) => window.__fibre.get(id).dispatchEvent(new Event(type, {bubbles: true}))`
