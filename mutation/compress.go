package mutation

// Compress collapses redundant records of a batch:
//   - consecutive attr on the same (xpath, name) keep the last value and the
//     first old value;
//   - consecutive text on the same xpath likewise;
//   - insert, remove and listener records are never compressed.
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]Record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]

		switch rec.Op {
		case OpAttr, OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) && records[j].Op == rec.Op &&
				records[j].XPath == rec.XPath && records[j].Name == rec.Name {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1
		default:
			result = append(result, rec)
		}
	}
	return result
}
