// Package translate converts filter trees into the native query syntax of a
// federated backend.
//
// A backend is described by a Capabilities table: the native fields it knows,
// the operators allowed on each, its literal quoting, date layout, wildcard
// characters and negation/null keywords. A Translator combines the table with
// an attribute mapper and an optional geometry formatter:
//
//	caps, attrs, _ := translate.Profile(translate.ProfileConfluence)
//	mapper := attrmap.New(attrs)
//	tr, err := translate.NewTranslator(caps, &translate.Options{Mapper: mapper})
//	if err != nil {
//	    return err
//	}
//	res, err := tr.Translate(f)
//	if err != nil {
//	    return err // malformed filter
//	}
//	if !res.Supported {
//	    // backend contributes no results
//	}
//
// # Unsupported Predicates
//
// A predicate the backend cannot express is not an error:
//   - For And and Or: unsupported children are dropped; one survivor is
//     returned without grouping; no survivors makes the node unsupported
//   - For Not: an unsupported child makes the whole Not unsupported
//   - Blank text values count as unsupported
//   - Like patterns that literally contain a native wildcard character
//     (e.g. '%' for SQL backends) are unsupported
//
// This produces the widest query over the supported subset. Negation is the
// exception because negating an unknown predicate would narrow the result
// arbitrarily.
//
// # Query Routing Flags
//
// Result.QueryOfInterest tells the caller whether the filter concerns the
// backend at all (a predicate translated, or the discriminator attribute
// matched a marker). Result.WildcardOnly flags filters whose only
// predicates are "*" text searches.
package translate
