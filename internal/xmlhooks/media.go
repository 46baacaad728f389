package xmlhooks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/cache"
	"slidepress/internal/errs"
	"slidepress/internal/rendered"
	"slidepress/internal/svg"
	"slidepress/internal/xmlutil"
)

// FormulaScale converts formula pixels rendered at the default DPI to
// display pixels.
const FormulaScale = 0.625

func floatAttr(el *etree.Element, name string, def float64) (float64, error) {
	attr := el.SelectAttr(name)
	if attr == nil {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
	if err != nil {
		return 0, errs.Wrap(errs.KindMalformedXML, err, "attribute %s of <%s> must be a number", name, el.FullTag())
	}
	return v, nil
}

func handleTex(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	formula := strings.TrimSpace(xmlutil.InnerText(el))
	long, err := xmlutil.BoolAttr(el, "long", false)
	if err != nil {
		return Result{}, err
	}
	userScale, err := floatAttr(el, "scale", 1)
	if err != nil {
		return Result{}, err
	}

	if p.HasFeature(rendered.FeatureMathJax) {
		if long {
			return Replace(false, texContainer(el, etree.NewText(`\[`+formula+`\]`))), nil
		}
		return Replace(false, etree.NewText(`\(`+formula+`\)`)), nil
	}

	res, err := p.Render(ctx, "latex", map[string]any{
		"formula": formula,
		"long":    long,
	})
	if err != nil {
		return Result{}, err
	}
	width, err := res.Data.Float("width")
	if err != nil {
		return Result{}, err
	}
	baseline, err := res.Data.Float("baseline")
	if err != nil {
		return Result{}, err
	}
	png, err := res.Data.Bytes("png_data")
	if err != nil {
		return Result{}, err
	}

	scale := FormulaScale * userScale
	widthPx := int(math.RoundToEven(width * scale))
	baselinePx := int(math.RoundToEven(baseline * scale))

	local := fmt.Sprintf("imgs/latex/%s.png", res.KeyHash)
	if err := p.AddFile(local, png); err != nil {
		return Result{}, err
	}

	img := etree.NewElement("img")
	img.CreateAttr("src", p.ResourceURI(local))
	if long {
		img.CreateAttr("style", fmt.Sprintf("width: %dpx; margin-top: 5px", widthPx))
	} else {
		img.CreateAttr("style", fmt.Sprintf("width: %dpx; margin-bottom: %dpx; margin-top: 5px", widthPx, -baselinePx+1))
	}
	img.CreateAttr("alt", formula)

	if long {
		return Replace(false, texContainer(el, img)), nil
	}
	return Replace(false, img), nil
}

// texContainer wraps a long formula. It is centered unless an indent is
// given.
func texContainer(el *etree.Element, content etree.Token) *etree.Element {
	div := etree.NewElement("div")
	div.CreateAttr("class", "longtex")
	if indent := el.SelectAttr("indent"); indent != nil {
		div.CreateAttr("style", "margin-left: "+indent.Value)
	} else {
		div.CreateAttr("style", "text-align: center")
	}
	div.AddChild(content)
	return div
}

// fillImage stores rendered image data under imgs/<dir>/ and returns the
// element displaying it.
func fillImage(p *rendered.Presentation, dir string, res *cache.Result) (*etree.Element, error) {
	data, err := res.Data.Bytes("img_data")
	if err != nil {
		return nil, err
	}
	ext := res.Data.String("extension")
	local := fmt.Sprintf("imgs/%s/%s.%s", dir, res.KeyHash, ext)
	if err := p.AddFile(local, data); err != nil {
		return nil, err
	}

	div := etree.NewElement("div")
	div.CreateAttr("class", "fillimg")
	img := div.CreateElement("img")
	img.CreateAttr("src", p.ResourceURI(local))
	img.CreateAttr("class", "fill")
	return div, nil
}

// formatTransformations collects one format_text transformation per
// s:format child. Its attributes are the placeholder values and are
// themselves subject to variable substitution.
func formatTransformations(p *rendered.Presentation, el *etree.Element) ([]any, error) {
	var out []any
	for _, child := range el.ChildElements() {
		if child.FullTag() != xmlutil.Prefix+":format" {
			continue
		}
		t := svg.Transformation{Cmd: "format_text", Variables: make(map[string]string)}
		for _, attr := range child.Attr {
			if attr.Space == "xmlns" || attr.Key == "xmlns" {
				continue
			}
			value, err := p.Variables().Evaluate(attr.Value)
			if err != nil {
				return nil, err
			}
			t.Variables[attr.Key] = value
		}
		out = append(out, t.ToInput())
	}
	return out, nil
}

func handleImg(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	inputs := map[string]any{
		"max_dimension": p.Params().ImageMaxDimension,
	}
	if src := el.SelectAttr("src"); src != nil {
		path, err := p.LookupInclude(src.Value)
		if err != nil {
			return Result{}, err
		}
		inputs["src"] = path
	} else if value := el.SelectAttr("value"); value != nil {
		filetype, err := requireAttr(el, "filetype")
		if err != nil {
			return Result{}, err
		}
		inputs["value"] = value.Value
		inputs["filetype"] = filetype
	} else {
		return Result{}, errs.New(errs.KindMalformedXML, "<s:img> needs either a 'src' or a 'value' attribute")
	}

	transforms, err := formatTransformations(p, el)
	if err != nil {
		return Result{}, err
	}
	if len(transforms) > 0 {
		inputs["svg_transform"] = transforms
	}

	res, err := p.Render(ctx, "img", inputs)
	if err != nil {
		return Result{}, err
	}
	div, err := fillImage(p, "img", res)
	if err != nil {
		return Result{}, err
	}
	return Replace(false, div), nil
}

func handlePlot(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	src, err := requireAttr(el, "src")
	if err != nil {
		return Result{}, err
	}
	path, err := p.LookupInclude(src)
	if err != nil {
		return Result{}, err
	}
	inputs := map[string]any{
		"src":           path,
		"max_dimension": p.Params().ImageMaxDimension,
	}
	for _, name := range []string{"width", "height", "aspect"} {
		if attr := el.SelectAttr(name); attr != nil {
			v, err := floatAttr(el, name, 0)
			if err != nil {
				return Result{}, err
			}
			inputs[name] = v
		}
	}

	res, err := p.Render(ctx, "plot", inputs)
	if err != nil {
		return Result{}, err
	}
	div, err := fillImage(p, "plot", res)
	if err != nil {
		return Result{}, err
	}
	return Replace(false, div), nil
}

func handleGraphviz(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	src, err := requireAttr(el, "src")
	if err != nil {
		return Result{}, err
	}
	path, err := p.LookupInclude(src)
	if err != nil {
		return Result{}, err
	}
	inputs := map[string]any{"src": path}
	if xmlutil.HasAttr(el, "scale") {
		scale, err := floatAttr(el, "scale", 1)
		if err != nil {
			return Result{}, err
		}
		inputs["scale"] = scale
	}

	res, err := p.Render(ctx, "graphviz", inputs)
	if err != nil {
		return Result{}, err
	}
	div, err := fillImage(p, "graphviz", res)
	if err != nil {
		return Result{}, err
	}
	return Replace(false, div), nil
}

// svgImage returns an s:img carrying SVG text as its value. It is handled
// by the img hook once the walk descends into it.
func svgImage(data string) *etree.Element {
	img := etree.NewElement(xmlutil.Prefix + ":img")
	img.CreateAttr("value", data)
	img.CreateAttr("filetype", "svg")
	return img
}

func handleDTG(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	text, err := sourceText(p, el)
	if err != nil {
		return Result{}, err
	}
	res, err := p.Render(ctx, "dtg", map[string]any{"src": text})
	if err != nil {
		return Result{}, err
	}
	return Replace(true, svgImage(res.Data.String("svg"))), nil
}

func handleQRCode(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	data := strings.TrimSpace(xmlutil.InnerText(el))
	if data == "" {
		return Result{}, errs.New(errs.KindMalformedXML, "<s:qrcode> has no data to encode")
	}
	res, err := p.Render(ctx, "qrcode", map[string]any{"data": data})
	if err != nil {
		return Result{}, err
	}
	return Replace(true, svgImage(res.Data.String("svg"))), nil
}

// IncludedFilePath returns the path below the resource directory an
// included file is published under. key obscures the location.
func IncludedFilePath(basename, key string) string {
	sum := md5.Sum([]byte(basename + key))
	return "incfiles/" + hex.EncodeToString(sum[:]) + "/" + basename
}

func handleFile(_ context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	src, err := requireAttr(el, "src")
	if err != nil {
		return Result{}, err
	}
	path, err := p.LookupInclude(src)
	if err != nil {
		return Result{}, err
	}
	basename := filepath.Base(path)
	local := IncludedFilePath(basename, p.MetaString("filename-key", ""))
	if err := p.CopyFile(path, local); err != nil {
		return Result{}, err
	}

	a := etree.NewElement("a")
	a.CreateAttr("href", p.ResourceURI(local))
	if len(el.Child) == 0 {
		a.SetText(basename)
	} else {
		xmlutil.MoveChildren(a, el)
	}
	return Replace(true, a), nil
}
