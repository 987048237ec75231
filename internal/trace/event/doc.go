// Package event defines the trace event model shared by every stage of the
// analysis pipeline.
//
// Every record decoded from a worker's trace stream becomes one Event. The
// Kind field discriminates which of the remaining fields carry meaning:
//
//	KindOperator      Worker, Timestamp, Addr, Name
//	KindChannel       Worker, Timestamp, Channel, Source, Dest
//	KindScheduleStart Worker, Timestamp, Addr
//	KindScheduleStop  Worker, Timestamp, Addr
//	KindMessage       Worker, Timestamp, Channel, IsSend, Records
//	KindShutdown      Worker, Timestamp
//
// Consumers switch on Kind and ignore the kinds they do not need.
package event
