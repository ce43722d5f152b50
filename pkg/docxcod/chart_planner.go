package docxcod

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// PlanChartDuplication prepares every chart reference for per-iteration
// cloning. A placeholder before the drawing requests a uid for the original
// relationship id, and the reference's r:id becomes a call that duplicates the
// chart and yields the clone's id. It returns the number of charts planned.
func PlanChartDuplication(doc *etree.Document, logger *Logger) int {
	planned := 0

	for _, chart := range dxml.Collect(doc.Root(), dxml.IsChartRef) {
		attr := chart.SelectAttr(dxml.AttrRelID)
		if attr == nil || attr.Value == "" {
			logger.WithField("path", dxml.Path(chart)).Warn("Chart reference without relationship id")
			continue
		}
		originalID := attr.Value
		if strings.Contains(originalID, "{{") {
			continue
		}

		drawing := dxml.Ancestor(chart, dxml.TagDrawing)
		if drawing == nil {
			logger.WithFields(Fields{
				"original_id": originalID,
				"path":        dxml.Path(chart),
			}).Warn("Chart reference outside a drawing")
			continue
		}

		dxml.InsertBefore(drawing, dxml.NewPlaceholder(
			fmt.Sprintf("{{set %s = %s('%s')}}", chartUIDVariable, chartUIDFunction, originalID)))
		attr.Value = fmt.Sprintf("{{%s('%s', %s)}}", chartRefFunction, originalID, chartUIDVariable)
		planned++

		logger.WithFields(Fields{
			"original_id": originalID,
			"path":        dxml.Path(chart),
		}).Debug("Chart planned for duplication")
	}

	return planned
}
