/*
Package cache provides an interface to cache items. It should not be of any
concern to the callee where this cache is, simply that the cache exists and
will speed things up.

Values are gob encoded before being handed to the backend. The default
backend is memcached; an in-process backend exists for tests and for running
without a memcached instance.

Eventual consistency of the cached items is promised, but nothing more.
*/
package cache
