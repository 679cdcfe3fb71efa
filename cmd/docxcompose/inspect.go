package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose"
)

// templateReport is what inspect prints about a template.
type templateReport struct {
	Name        string           `yaml:"name"`
	Page        pageReport       `yaml:"page"`
	CoverPage   bool             `yaml:"cover_page"`
	NumIDs      []int            `yaml:"num_ids"`
	BulletNumID int              `yaml:"bullet_num_id,omitempty"`
	Footnotes   footnoteReport   `yaml:"footnotes"`
	Media       int              `yaml:"media"`
	Styles      []styleReportRow `yaml:"styles"`
}

type pageReport struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Orientation string `yaml:"orientation,omitempty"`
	TextWidth   int    `yaml:"text_width"`
	TextHeight  int    `yaml:"text_height"`
}

type footnoteReport struct {
	Special int `yaml:"special"`
	MaxID   int `yaml:"max_id"`
}

type styleReportRow struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Aliases []string `yaml:"aliases,omitempty"`
	Default bool     `yaml:"default,omitempty"`
}

func inspectCmd(a *app) *cobra.Command {
	var format string

	c := &cobra.Command{
		Use:   "inspect TEMPLATE",
		Short: "Show the styles, numbering and page setup of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := docxcompose.LoadTemplateFile(args[0])
			if err != nil {
				return err
			}
			report := newTemplateReport(tmpl)
			a.log.Debug("template inspected", zap.String("template", tmpl.Name()), zap.Int("styles", len(report.Styles)))
			switch format {
			case "text":
				return report.writeText(cmd.OutOrStdout())
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	c.Flags().StringVarP(&format, "format", "f", "text", "output format: text or yaml")
	return c
}

func newTemplateReport(t *docxcompose.StyleTemplate) templateReport {
	g := t.Geometry()
	area := t.ContentAreaSize()
	r := templateReport{
		Name: t.Name(),
		Page: pageReport{
			Width:       g.Width,
			Height:      g.Height,
			Orientation: g.Orientation,
			TextWidth:   area.Width,
			TextHeight:  area.Height,
		},
		CoverPage: t.HasCoverPage(),
		NumIDs:    t.NumIDs(),
		Footnotes: footnoteReport{Special: len(t.SpecialFootnotes()), MaxID: t.MaxFootnoteID()},
		Media:     t.MediaCount(),
	}
	if id, ok := t.BulletNumID(); ok {
		r.BulletNumID = id
	}
	for _, s := range t.Styles() {
		r.Styles = append(r.Styles, styleReportRow{ID: s.ID, Name: s.Name, Type: s.Type, Aliases: s.Aliases, Default: s.Default})
	}
	return r
}

func (r templateReport) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "template:\t%s\n", r.Name)
	orient := r.Page.Orientation
	if orient == "" {
		orient = "portrait"
	}
	fmt.Fprintf(tw, "page:\t%dx%d twips, %s\n", r.Page.Width, r.Page.Height, orient)
	fmt.Fprintf(tw, "text area:\t%dx%d twips\n", r.Page.TextWidth, r.Page.TextHeight)
	fmt.Fprintf(tw, "cover page:\t%t\n", r.CoverPage)
	fmt.Fprintf(tw, "numbering ids:\t%s\n", joinInts(r.NumIDs))
	if r.BulletNumID > 0 {
		fmt.Fprintf(tw, "bullet numbering:\t%d\n", r.BulletNumID)
	}
	fmt.Fprintf(tw, "footnotes:\t%d special, max id %d\n", r.Footnotes.Special, r.Footnotes.MaxID)
	fmt.Fprintf(tw, "media:\t%d\n", r.Media)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tALIASES")
	for _, s := range r.Styles {
		name := s.Name
		if s.Default {
			name += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, name, s.Type, strings.Join(s.Aliases, ", "))
	}
	return tw.Flush()
}

func joinInts(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
