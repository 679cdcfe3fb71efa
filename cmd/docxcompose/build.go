package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxcompose/internal/stream"
	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose"
)

func buildCmd(a *app) *cobra.Command {
	var template, input, output string
	var noCoverPage bool

	c := &cobra.Command{
		Use:   "build",
		Short: "Build a .docx from a template and a content stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := docxcompose.ConfigFromViper(a.v)
			if noCoverPage {
				cfg.SkipCoverPage = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			doc, err := stream.Load(input)
			if err != nil {
				return err
			}

			engine := docxcompose.NewWithConfig(cfg)
			engine.SetLogger(a.log)
			composer, err := engine.NewComposer(template)
			if err != nil {
				return err
			}
			defer composer.Close()

			if err := stream.NewReplayer(composer, filepath.Dir(input), a.log).Replay(doc); err != nil {
				return err
			}
			composer.SetProperties(a.properties(composer.Properties()))

			if err := composer.Save(output); err != nil {
				return err
			}
			a.log.Info("document built", zap.String("output", output), zap.Int("blocks", len(doc.Content)))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	f := c.Flags()
	f.StringVarP(&template, "template", "t", "", "style template .docx (required)")
	f.StringVarP(&input, "input", "i", "", "content stream, YAML or JSON (required)")
	f.StringVarP(&output, "output", "o", "", "output .docx (required)")
	f.BoolVar(&noCoverPage, "no-cover-page", false, "do not insert the template's cover page")
	f.String("title", "", "document title, overriding the content stream")
	f.Int("image-dpi", 0, "resolution used to size pictures")
	_ = a.v.BindPFlag("properties.title", f.Lookup("title"))
	_ = a.v.BindPFlag("image_dpi", f.Lookup("image-dpi"))

	_ = c.MarkFlagRequired("template")
	_ = c.MarkFlagRequired("input")
	_ = c.MarkFlagRequired("output")
	return c
}

// properties overlays the configured properties.* values on p.
func (a *app) properties(p docxcompose.Properties) docxcompose.Properties {
	set := func(dst *string, key string) {
		if s := a.v.GetString("properties." + key); s != "" {
			*dst = s
		}
	}
	set(&p.Title, "title")
	set(&p.Subject, "subject")
	set(&p.Creator, "creator")
	set(&p.Company, "company")
	set(&p.Category, "category")
	set(&p.Description, "description")
	if kw := a.v.GetStringSlice("properties.keywords"); len(kw) > 0 {
		p.Keywords = kw
	}
	return p
}
