package server

import (
	"html/template"
	"io"
	"net/http"

	"github.com/vango-dev/tether/pkg/vdom"
)

// shellTemplate is the page served at "/". The body holds the full root
// render; the script keeps it in sync over the socket.
var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script>
(function () {
  var ws = null, pending = [], delay = 250;

  function socketURL() {
    return (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/";
  }

  function send(msg) {
    if (ws && ws.readyState === 1) {
      ws.send(msg);
    } else {
      pending.push(msg);
    }
  }

  function paramPacketize(params) {
    var out = "", enc = new TextEncoder();
    for (var name in params) {
      var field = name + "=" + params[name];
      out += enc.encode(field).length + "|" + field + "|";
    }
    return out;
  }

  window.paramPacketize = paramPacketize;

  window.sendCallback = function (id, handler) {
    send(encodeURIComponent("callback/" + id + "/" + handler));
  };

  window.sendCallbackParam = function (id, handler, params) {
    send(encodeURIComponent("callback/" + id + "/" + handler + "/" + paramPacketize(params)));
  };

  function apply(msg) {
    var kind = msg.charAt(0), body = msg.substring(1);
    if (kind === "3") {
      return;
    }
    if (kind === "2") {
      (0, eval)(body);
      return;
    }
    var comma = body.indexOf(",");
    if (comma < 0) {
      return;
    }
    var id = body.substring(0, comma);
    var html = decodeURIComponent(body.substring(comma + 1));
    if (kind === "0") {
      document.body.dataset.root = id;
      document.body.innerHTML = html;
    } else if (kind === "1") {
      var el = document.getElementById(id);
      if (el) {
        el.outerHTML = html;
      }
    }
  }

  function connect() {
    ws = new WebSocket(socketURL());
    ws.onopen = function () {
      delay = 250;
      while (pending.length > 0) {
        ws.send(pending.shift());
      }
    };
    ws.onmessage = function (e) {
      apply(e.data);
    };
    ws.onclose = function () {
      ws = null;
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 10000);
    };
  }

  connect();
})();
</script>
</head>
<body data-root="{{.RootID}}">{{.Body}}</body>
</html>
`))

type shellData struct {
	Title  string
	RootID string
	Body   template.HTML
}

// writeShell renders the page shell around markup.
func writeShell(w io.Writer, title string, rootID vdom.ID, markup string) error {
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		rw.Header().Set("Cache-Control", "no-store")
	}
	return shellTemplate.Execute(w, shellData{
		Title:  title,
		RootID: rootID.String(),
		// Already escaped by vdom's renderer.
		Body: template.HTML(markup),
	})
}
