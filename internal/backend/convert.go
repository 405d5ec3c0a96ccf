package backend

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// convertRecords turns driver records into plain maps that survive JSON
// encoding and deep copies.
func convertRecords(records []*neo4j.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		m := make(Record, len(r.Keys))
		for i, key := range r.Keys {
			m[key] = convertValue(r.Values[i])
		}
		out = append(out, m)
	}
	return out
}

// convertValue maps graph types onto maps and slices:
// nodes carry _id and _labels, relationships _id, _type, _start and _end,
// paths become {nodes, relationships}. Temporal values become time.Time or
// ISO-8601 strings.
func convertValue(v any) any {
	switch x := v.(type) {
	case dbtype.Node:
		m := convertProps(x.Props)
		m["_id"] = x.ElementId
		m["_labels"] = append([]string(nil), x.Labels...)
		return m
	case dbtype.Relationship:
		m := convertProps(x.Props)
		m["_id"] = x.ElementId
		m["_type"] = x.Type
		m["_start"] = x.StartElementId
		m["_end"] = x.EndElementId
		return m
	case dbtype.Path:
		nodes := make([]any, len(x.Nodes))
		for i, n := range x.Nodes {
			nodes[i] = convertValue(n)
		}
		rels := make([]any, len(x.Relationships))
		for i, r := range x.Relationships {
			rels[i] = convertValue(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case dbtype.Date:
		return x.Time().Format("2006-01-02")
	case dbtype.LocalDateTime:
		return x.Time().Format("2006-01-02T15:04:05.999999999")
	case dbtype.LocalTime:
		return x.Time().Format("15:04:05.999999999")
	case dbtype.Time:
		return x.Time().Format("15:04:05.999999999Z07:00")
	case dbtype.Duration:
		return x.String()
	case dbtype.Point2D:
		return map[string]any{"srid": x.SpatialRefId, "x": x.X, "y": x.Y}
	case dbtype.Point3D:
		return map[string]any{"srid": x.SpatialRefId, "x": x.X, "y": x.Y, "z": x.Z}
	case time.Time:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		return convertProps(x)
	default:
		return v
	}
}

func convertProps(props map[string]any) map[string]any {
	m := make(map[string]any, len(props)+2)
	for k, v := range props {
		m[k] = convertValue(v)
	}
	return m
}
