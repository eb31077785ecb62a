package cmd

import (
	"github.com/spf13/cobra"

	"github.com/arview/product-crawler/internal/pipeline"
)

// printResults renders batch results in a compact human format.
func printResults(cmd *cobra.Command, results []pipeline.Result) {
	for _, r := range results {
		if r.Err != nil {
			cmd.Printf("FAIL  %s\n      %v\n", r.URL, r.Err)
			continue
		}
		rec := r.Record
		cmd.Printf("%-8s %s\n", rec.Status, r.URL)
		cmd.Printf("      title:    %s\n", rec.Title)
		if rec.Brand != "" {
			cmd.Printf("      brand:    %s\n", rec.Brand)
		}
		cmd.Printf("      platform: %s  type: %s  relevance: %.2f\n",
			rec.Platform, rec.ProductType, rec.SizeRelevance)
		if rec.Dimensions != nil {
			cmd.Printf("      size:     %.0f x %.0f x %.0f mm (from %s, confidence %.2f)\n",
				rec.Dimensions.LengthMM, rec.Dimensions.WidthMM, rec.Dimensions.HeightMM,
				rec.Dimensions.Source, rec.Dimensions.Confidence)
		}
		if len(rec.Warnings) > 0 {
			for _, w := range rec.Warnings {
				cmd.Printf("      warning:  %s\n", w)
			}
		}
		cmd.Printf("      ar-ready: %v  quality: %s (%.2f)\n",
			rec.ARReady, rec.QualityTier, rec.QualityScore)
	}
}
