package xmlhooks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	lzstring "github.com/daku10/go-lz-string"

	"slidepress/internal/errs"
	"slidepress/internal/rendered"
	"slidepress/internal/xmlutil"
)

// DefaultCircuitURI is the CircuitJS simulator circuits link to.
const DefaultCircuitURI = "https://www.falstad.com/circuit/circuitjs.html"

var circuitDefaults = map[string]string{
	"euroResistors":   "true",
	"IECGates":        "false",
	"whiteBackground": "true",
	"positiveColor":   "#27ae60",
	"negativeColor":   "#c0392b",
	"selectColor":     "#2c3e50",
}

// Circuit is a CircuitJS simulation link.
type Circuit struct {
	URI     string
	Lines   []string
	Params  url.Values
	Name    string
	Content string
	Display []etree.Token
}

// Text returns the circuit description passed to the simulator.
func (c *Circuit) Text() string {
	if c.Lines == nil {
		return ""
	}
	return strings.Join(c.Lines, "\n") + "\n"
}

// URL returns the simulator link with the compressed circuit appended.
func (c *Circuit) URL() (string, error) {
	params := url.Values{}
	for k, v := range c.Params {
		params[k] = v
	}
	if c.Lines != nil {
		ctz, err := lzstring.CompressToEncodedURIComponent(c.Text())
		if err != nil {
			return "", fmt.Errorf("failed to compress circuit: %w", err)
		}
		params.Set("ctz", ctz)
	}
	if len(params) == 0 {
		return c.URI, nil
	}
	return c.URI + "?" + params.Encode(), nil
}

// DecodeCircuitLink extracts the circuit description from a simulator link.
func DecodeCircuitLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedXML, err, "invalid circuit link")
	}
	ctz := u.Query().Get("ctz")
	if ctz == "" {
		return "", errs.Newf(errs.KindMissingParameter, "circuit link is missing the ctz= portion of its query: %s", link)
	}
	text, err := lzstring.DecompressFromEncodedURIComponent(ctz)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedXML, err, "failed to decompress circuit link")
	}
	return text, nil
}

// ParseCircuit reads the s:param children of el. Other children become the
// displayed content.
func ParseCircuit(p *rendered.Presentation, el *etree.Element) (*Circuit, error) {
	c := &Circuit{URI: DefaultCircuitURI, Params: url.Values{}}
	for k, v := range circuitDefaults {
		c.Params.Set(k, v)
	}

	var text *string
	for _, tok := range el.Child {
		child, ok := tok.(*etree.Element)
		if !ok || child.FullTag() != xmlutil.Prefix+":param" {
			c.Display = append(c.Display, tok)
			continue
		}

		name := child.SelectAttrValue("name", "")
		value, err := sourceText(p, child)
		if err != nil {
			return nil, err
		}
		value = strings.TrimSpace(value)

		switch name {
		case "uri":
			c.URI = value
		case "src":
			text = &value
		case "srclink":
			decoded, err := DecodeCircuitLink(value)
			if err != nil {
				return nil, err
			}
			text = &decoded
		case "name":
			c.Name = value
		case "content":
			c.Content = value
		case "":
			return nil, errs.New(errs.KindMalformedXML, "s:param of s:circuit needs a 'name' attribute")
		default:
			c.Params.Set(name, value)
		}
	}

	if text != nil {
		lines := strings.Split(strings.Trim(*text, "\r\n"), "\n")
		for i, line := range lines {
			lines[i] = strings.Trim(line, " \t\r\n")
		}
		c.Lines = lines
	}
	return c, nil
}

func handleCircuit(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	c, err := ParseCircuit(p, el)
	if err != nil {
		return Result{}, err
	}
	href, err := c.URL()
	if err != nil {
		return Result{}, err
	}

	a := etree.NewElement("a")
	a.CreateAttr("href", href)
	switch c.Content {
	case "":
		for _, tok := range c.Display {
			el.RemoveChild(tok)
			a.AddChild(tok)
		}
	case "image":
		if c.Name == "" {
			return Result{}, errs.New(errs.KindMalformedXML, "s:circuit requests an image but does not name the circuit")
		}
		filename := "circuit_" + c.Name + ".svg"
		if _, err := p.LookupInclude(filename); err != nil {
			msg := "Missing rendered circuit: " + c.Name
			p.Warnf("Warning: %s", msg)
			a.SetText(msg)
		} else {
			img := a.CreateElement(xmlutil.Prefix + ":img")
			img.CreateAttr("src", filename)
		}
	default:
		return Result{}, errs.Newf(errs.KindMalformedXML, "s:circuit has unknown 'content' parameter: %s", c.Content)
	}
	return Replace(true, a), nil
}
