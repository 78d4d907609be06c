// Package domain models USAFacts county-level COVID-19 tables and the weekly
// aggregation that turns them into national incidence series and per-county
// rate panels.
//
// # Data Source
//
// USAFacts publishes three wide CSV tables, refreshed daily:
//
//	covid_confirmed_usafacts.csv          cumulative-or-daily confirmed cases
//	covid_deaths_usafacts.csv             deaths
//	covid_county_population_usafacts.csv  most recent county population estimate
//
// The case and death tables carry one row per county and one column per
// calendar day. Values are taken as already representing daily increments.
//
// # USAFacts Conventions
//
// County identifier ("countyFIPS" column):
//
//	A 5-digit FIPS code: 2-digit state + 3-digit county, e.g. "06037" is
//	Los Angeles County, CA. Spreadsheet tools strip the leading zero, so the
//	raw value often arrives as an integer ("6037") or a float ("6037.0").
//	Canonical form is left-padded to width 5. See [NormalizeFIPS].
//
// Unallocated rows:
//
//	Cases that could not be attributed to a county are reported under
//	countyFIPS 0, once per state. After padding these all collapse to the
//	placeholder "00000", so they are dropped before identifiers are checked
//	for uniqueness and never appear in any output.
//
// Date headers:
//
//	Newer releases use ISO dates ("2020-01-22"); older ones use US locale
//	dates ("1/22/20" or "1/22/2020"). Both are accepted. Any other header that
//	is not the identifier or a known metadata column is a schema error.
//
// # Weeks
//
// A week is a Sunday-to-Saturday bucket identified by its Saturday end date
// (pandas "W-SAT"). Only buckets with all seven days present in the source
// table are kept; partial weeks at either end of the range and weeks with
// upstream gaps are excluded. The exclusion set is computed from one daily
// panel's own date axis and cannot be applied to another panel. See
// [ComputeWeekPolicy].
//
// # Rates
//
// The rate basis is the weekly mean of daily counts. It is divided by the
// county population and scaled to events per 100,000 residents. A county
// with no population entry, or a population of zero, never yields a rate.
package domain
