package sqlinline

// QDebitCredits decrements only when the balance covers the amount. No row
// is returned otherwise.
const QDebitCredits = `--sql eb9b2900-50d5-408d-a175-0bd2531c9ab4
with debited as (
  update accounts
  set credits = credits - $2::int,
      updated_at = now()
  where id = $1::uuid
    and credits >= $2::int
  returning id, credits
),
entry as (
  insert into credit_entries(account_id, kind, amount, balance_after, reference)
  select id, 'debit', -$2::int, credits, $3::text from debited
)
select credits from debited;
`

const QCreditCredits = `--sql af44b138-26cd-4d11-831c-c4d72ab7c543
with credited as (
  update accounts
  set credits = credits + $3::int,
      updated_at = now()
  where id = $1::uuid
  returning id, credits
),
entry as (
  insert into credit_entries(account_id, kind, amount, balance_after, reference)
  select id, $2::text, $3::int, credits, $4::text from credited
)
select credits from credited;
`

const QSelectBalance = `--sql 828d2cf7-d11a-485a-b306-aaf5d83ac6c1
select credits
from accounts
where id = $1::uuid;
`

// QRecordPurchase returns (balance, applied). A replayed sale id leaves the
// balance untouched and reports applied = false.
const QRecordPurchase = `--sql f26ecbb8-eb9d-452f-8397-d0a98d092c9f
with inserted as (
  insert into purchase_history(account_id, provider, external_id, credits, price_paid, currency, created_at)
  values ($1::uuid, $2::text, $3::text, $4::int, $5::bigint, $6::text, now())
  on conflict (provider, external_id) do nothing
  returning account_id, credits, external_id
),
credited as (
  update accounts a
  set credits = a.credits + i.credits,
      updated_at = now()
  from inserted i
  where a.id = i.account_id
  returning a.id, a.credits
),
entry as (
  insert into credit_entries(account_id, kind, amount, balance_after, reference)
  select c.id, 'purchase', i.credits, c.credits, i.external_id
  from credited c cross join inserted i
)
select credits, true from credited
union all
select a.credits, false
from accounts a
where a.id = $1::uuid
  and not exists (select 1 from inserted);
`

const QListPurchases = `--sql 4de2a5a5-eaf0-4788-9b0a-eaff14ed7f66
select id, account_id, provider, external_id, credits, price_paid, currency, created_at
from purchase_history
where account_id = $1::uuid
order by created_at desc
limit $2::int;
`

const QListCreditEntries = `--sql 35798fde-2f59-444b-9457-317b8a430651
select id, account_id, kind, amount, balance_after, reference, created_at
from credit_entries
where account_id = $1::uuid
order by created_at desc
limit $2::int;
`
