package sqlinline

const QInsertPrediction = `--sql cefc1ecf-7c2d-42c2-ae9b-31e64fae0295
insert into predictions(id, account_id, status, input, version, created_at, updated_at)
values ($1::text, $2::uuid, $3::text, $4::jsonb, $5::text, coalesce($6::timestamptz, now()), now());
`

const QSelectPrediction = `--sql 78f78379-d4d0-4ebb-ac72-b697cfa09094
select id, account_id, status, input, version, output, error, metrics, webhook_completed, created_at, completed_at, updated_at
from predictions
where id = $1::text
limit 1;
`

// QApplyPredictionUpdate is a compare-and-set on status: $8 lists the
// statuses the row must currently hold for the update to apply.
const QApplyPredictionUpdate = `--sql 400614e2-7e81-447f-a779-0da15953bdda
update predictions
set status = $2::text,
    output = $3::text[],
    error = nullif($4::text, ''),
    metrics = coalesce($5::jsonb, metrics),
    completed_at = $6::timestamptz,
    webhook_completed = webhook_completed or $7::bool,
    updated_at = now()
where id = $1::text
  and status = any($8::text[])
returning id, account_id, status, input, version, output, error, metrics, webhook_completed, created_at, completed_at, updated_at;
`

const QMarkWebhookCompleted = `--sql f2de8c35-2b06-4716-bf98-dfd7c5d6487d
update predictions
set webhook_completed = true,
    updated_at = now()
where id = $1::text;
`

// QClaimOpenPredictions picks the oldest untouched open jobs and stamps
// updated_at so the next pass moves on to other rows, even when the provider
// query for these fails.
const QClaimOpenPredictions = `--sql da0a2de4-e530-409b-9243-317a0ad9913f
with stale as (
    select id
    from predictions
    where status in ('starting', 'processing')
      and updated_at < $1::timestamptz
    order by updated_at asc
    for update skip locked
    limit $2::int
),
claimed as (
    update predictions
    set updated_at = now()
    where id in (select id from stale)
    returning id, account_id, status, input, version, output, error, metrics, webhook_completed, created_at, completed_at, updated_at
)
select * from claimed
order by created_at asc;
`

const QListSucceededPredictions = `--sql 64f7fd9d-9585-4753-8f04-60cbe1d2c54f
select id, account_id, status, input, version, output, error, metrics, webhook_completed, created_at, completed_at, updated_at
from predictions
where account_id = $1::uuid
  and status = 'succeeded'
order by created_at desc
limit $2::int;
`
