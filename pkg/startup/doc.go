/*
Package startup implements the generic, one-shot startup/shutdown engine
shared by every role-specific install in the partition lifecycle: a frozen
ordered list of Steps is opened in order, each opened step is pushed onto a
LIFO stack before its open call returns, and shutdown tears the stack down
in strict reverse order regardless of where startup stopped.

A Process[C] is single-use: Startup may run at most once, and a Shutdown
requested mid-startup does not abort the in-flight step — it lets that step
finish, cancels the steps that had not yet been reached, and proceeds to
tear down exactly the steps recorded in the LIFO stack.
*/
package startup
