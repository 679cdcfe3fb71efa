package docxcompose

import (
	"errors"
	"path"
	"strconv"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose/tree"
)

const (
	emuPerInch = 914400
	emuPerTwip = 635
)

// PixelsToEMU converts a pixel length at the given resolution to EMU.
func PixelsToEMU(px, dpi int) int64 {
	if dpi <= 0 {
		dpi = 96
	}
	return int64(px) * emuPerInch / int64(dpi)
}

// TwipsToEMU converts twips to EMU.
func TwipsToEMU(twips int) int64 { return int64(twips) * emuPerTwip }

// PictureOptions control an inline picture. Sizes are in EMU; a zero size
// is derived from the image's pixel dimensions at the configured DPI,
// keeping the aspect ratio when only one side is given.
type PictureOptions struct {
	Width       int64
	Height      int64
	Description string
	// Style is the paragraph style holding the picture.
	Style string
	Align string
}

// Picture embeds the image at path and appends a paragraph showing it
// inline. Pictures larger than the text area are scaled down to fit.
func (c *Composer) Picture(imagePath string, opts PictureOptions) error {
	if c.closed {
		return ErrComposerClosed
	}
	run, err := c.pictureRun(imagePath, opts)
	if err != nil {
		return err
	}
	p, err := c.paragraphElement(ParagraphOptions{Style: opts.Style, Align: opts.Align}, nil)
	if err != nil {
		return err
	}
	p.Add(run)
	_, err = c.appendBlock(p)
	return err
}

func (c *Composer) pictureRun(imagePath string, opts PictureOptions) (*tree.Element, error) {
	asset, err := c.media.Embed(imagePath)
	if err != nil {
		return nil, err
	}
	cx, cy, err := c.pictureExtent(asset, opts)
	if err != nil {
		return nil, &AssetError{Path: imagePath, Cause: err}
	}
	relID, err := c.cursor.part.rels.Register(asset.Target, RelTypeImage, false)
	if err != nil {
		return nil, &AssetError{Path: imagePath, Cause: err}
	}

	c.drawingID++
	id := strconv.Itoa(c.drawingID)
	name := "Picture " + id
	sx, sy := strconv.FormatInt(cx, 10), strconv.FormatInt(cy, 10)

	graphic := tree.E("a:graphic",
		tree.E("a:graphicData", tree.A("uri", tree.NSPicture),
			tree.E("pic:pic",
				tree.E("pic:nvPicPr",
					tree.E("pic:cNvPr", tree.A("id", "0"), tree.A("name", path.Base(asset.Name))),
					tree.E("pic:cNvPicPr"),
				),
				tree.E("pic:blipFill",
					tree.E("a:blip", tree.A("r:embed", relID)),
					tree.E("a:stretch", tree.E("a:fillRect")),
				),
				tree.E("pic:spPr",
					tree.E("a:xfrm",
						tree.E("a:off", tree.A("x", "0"), tree.A("y", "0")),
						tree.E("a:ext", tree.A("cx", sx), tree.A("cy", sy)),
					),
					tree.E("a:prstGeom", tree.A("prst", "rect"), tree.E("a:avLst")),
				),
			),
		),
	)
	inline := tree.E("wp:inline",
		tree.A("distT", "0"), tree.A("distB", "0"), tree.A("distL", "0"), tree.A("distR", "0"),
		tree.E("wp:extent", tree.A("cx", sx), tree.A("cy", sy)),
		tree.E("wp:effectExtent", tree.A("l", "0"), tree.A("t", "0"), tree.A("r", "0"), tree.A("b", "0")),
		tree.E("wp:docPr", tree.A("id", id), tree.A("name", name), tree.A("descr", opts.Description)),
		tree.E("wp:cNvGraphicFramePr", tree.E("a:graphicFrameLocks", tree.A("noChangeAspect", "1"))),
		graphic,
	)
	return tree.E("w:r", tree.E("w:drawing", inline)), nil
}

// pictureExtent computes the displayed size in EMU.
func (c *Composer) pictureExtent(a ImageAsset, opts PictureOptions) (int64, int64, error) {
	cx, cy := opts.Width, opts.Height
	if cx < 0 || cy < 0 {
		return 0, 0, errors.New("negative picture size")
	}
	if cx == 0 || cy == 0 {
		if !a.Probed || a.Width == 0 || a.Height == 0 {
			return 0, 0, errors.New("image dimensions are unknown; give both width and height")
		}
		switch {
		case cx == 0 && cy == 0:
			cx = PixelsToEMU(a.Width, c.cfg.ImageDPI)
			cy = PixelsToEMU(a.Height, c.cfg.ImageDPI)
		case cx == 0:
			cx = cy * int64(a.Width) / int64(a.Height)
		default:
			cy = cx * int64(a.Height) / int64(a.Width)
		}
	}

	area := c.tmpl.ContentAreaSize()
	if limit := TwipsToEMU(area.Width); limit > 0 && cx > limit {
		cy = cy * limit / cx
		cx = limit
	}
	if limit := TwipsToEMU(area.Height); limit > 0 && cy > limit {
		cx = cx * limit / cy
		cy = limit
	}
	return cx, cy, nil
}
