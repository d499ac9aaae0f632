// Package harness runs end-to-end transaction scenarios.
//
// A scenario seeds a fresh in-memory SQLite store, runs a command script
// through the real driver and handlers, then checks the run counters, the
// final row state and the console output.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: new_order_basic
//	description: "Order placement decrements and replenishes stock"
//	fixture: ../fixtures/small.yaml   # relative to the scenario file
//	rows:                             # extra seed rows, applied after fixture
//	  - table: stock
//	    key: [1, 20]
//	    fields: { s_quantity: 8, s_ytd: "0", s_order_cnt: 0, s_remote_cnt: 0 }
//	script: |
//	  N,1,1,1,2
//	  10,1,5
//	  20,1,3
//	expect:
//	  processed: 1
//	  skipped: 0
//	  malformed: 0
//	assertions:
//	  - type: final_state
//	    table: stock
//	    key: [1, 20]
//	    expect: { s_quantity: 105 }
//	  - type: row_absent
//	    table: order
//	    key: [1, 1, 3002]
//	  - type: output_contains
//	    text: "Transaction Skipped!"
//
// # Determinism
//
// Handlers see a wall clock frozen at testutil.Epoch, so entry and delivery
// dates are stable. The driver's clock advances one millisecond per reading,
// so every block reports "Time taken: 1 ms". The run ID is fixed. Console
// output can therefore be compared against golden files with RunWithGolden.
package harness
