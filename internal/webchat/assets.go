package webchat

import _ "embed"

// WidgetJS is the embeddable widget script served at /widget.js.
//
//go:embed widget.js
var WidgetJS []byte
